package service

import (
	"context"
	"fmt"
	"time"

	"bid-broker/internal/auth"
	"bid-broker/internal/listing"
	"bid-broker/internal/metrics"
	"bid-broker/internal/model"
	"bid-broker/internal/notify"
	"bid-broker/internal/pricing"
	"bid-broker/internal/rates"
	"bid-broker/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxOpenRequests caps how many unconfirmed bid requests a customer may hold.
const maxOpenRequests = 10

// negotiationService implements NegotiationService.
type negotiationService struct {
	repo      repository.BidRequestRepository
	listings  listing.Client
	rates     rates.Provider
	notifier  NotificationSink
	publisher Publisher
	policy    auth.Policy
	admin     notify.AdminContact
	logger    zerolog.Logger
}

// NewNegotiationService creates a new negotiation service.
func NewNegotiationService(
	repo repository.BidRequestRepository,
	listings listing.Client,
	ratesProvider rates.Provider,
	notifier NotificationSink,
	publisher Publisher,
	admin notify.AdminContact,
	logger zerolog.Logger,
) NegotiationService {
	return &negotiationService{
		repo:      repo,
		listings:  listings,
		rates:     ratesProvider,
		notifier:  notifier,
		publisher: publisher,
		admin:     admin,
		logger:    logger.With().Str("service", "negotiation").Logger(),
	}
}

// Create opens a new pending bid request after snapshotting the listing.
func (s *negotiationService) Create(ctx context.Context, actor model.Actor, req *CreateBidRequest) (rec *model.BidRequest, err error) {
	defer func() { metrics.ObserveTransition("create", err) }()

	if req == nil || req.ProductURL == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "productUrl is required")
	}
	if req.MaxBid <= 0 {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "maxBid must be positive")
	}

	targetEmail, err := s.policy.CreateTargetEmail(actor, req.CustomerEmail)
	if err != nil {
		return nil, err
	}

	open, err := s.repo.CountOpenByCustomer(ctx, targetEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to create bid request: %w", err)
	}
	if open >= maxOpenRequests {
		s.logger.Warn().
			Str("customer_email", targetEmail).
			Int("open_requests", open).
			Msg("open request limit reached")
		return nil, model.ErrOpenRequestLimit
	}

	// Snapshot the listing before touching the store; a failed scrape must
	// not leave a half-built record behind.
	snapshot, err := s.listings.Fetch(ctx, req.ProductURL)
	if err != nil {
		s.logger.Error().Err(err).Str("product_url", req.ProductURL).Msg("listing snapshot failed")
		return nil, model.ErrUpstreamFailure
	}

	language := req.Language
	if !language.Valid() {
		language = model.LanguageSpanish
	}

	customerName := req.CustomerName
	if customerName == "" {
		customerName = actor.Name
	}

	rec = &model.BidRequest{
		ID:             uuid.New(),
		ProductID:      snapshot.ProductID,
		ProductTitle:   snapshot.Title,
		ProductURL:     req.ProductURL,
		ProductImage:   snapshot.Image,
		ProductPrice:   snapshot.PriceJpy,
		ProductEndTime: snapshot.EndTime,
		MaxBid:         req.MaxBid,
		CustomerName:   customerName,
		CustomerEmail:  targetEmail,
		Language:       language,
		Status:         model.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if snapshot.ShippingCostJpy != nil {
		rec.ShippingCostJpy = snapshot.ShippingCostJpy
	}

	if err = s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_request_id", rec.ID.String()).
		Str("customer_email", rec.CustomerEmail).
		Float64("max_bid", rec.MaxBid).
		Msg("bid request created")

	s.afterCommit(ctx, rec, "created", notify.ForAdmin(s.admin, rec, "opened a new bid request"))

	return rec, nil
}

// AdminDecide applies an admin decision: approve, reject or counter.
func (s *negotiationService) AdminDecide(ctx context.Context, actor model.Actor, id uuid.UUID, req *DecideRequest) (rec *model.BidRequest, err error) {
	defer func() { metrics.ObserveTransition("admin_decide", err) }()

	if err = s.policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	rec, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req == nil {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "decision action is required")
	}

	state := rec.State()
	var event notify.Event

	switch req.Action {
	case ActionApprove:
		if state != model.StatePending && state != model.StateCounterByCustomer {
			return nil, model.ErrIllegalTransition
		}
		now := time.Now().UTC()
		rec.Status = model.StatusApproved
		rec.ApprovedAt = &now
		event = notify.EventApproved

	case ActionReject:
		switch state {
		case model.StatePending, model.StateCounterByAdmin, model.StateCounterByCustomer:
		default:
			return nil, model.ErrIllegalTransition
		}
		rec.Status = model.StatusRejected
		rec.RejectReason = req.Reason
		event = notify.EventRejected
		if rec.CustomerCounterOffer != nil {
			// Rejecting the customer's counter, not the original ask: the
			// record now waits for a manual deletion confirm and the customer
			// may not counter again.
			rec.AdminNeedsConfirm = true
			by := model.RejectedByAdmin
			rec.CounterRejectedBy = &by
			event = notify.EventCounterRejected
		}

	case ActionCounter:
		if state != model.StatePending && state != model.StateCounterByCustomer {
			return nil, model.ErrIllegalTransition
		}
		amount, cErr := s.counterAmount(ctx, rec, req)
		if cErr != nil {
			return nil, cErr
		}
		rec.Status = model.StatusCounterOffer
		rec.CounterOffer = &amount
		rec.ShippingCostJpy = req.ShippingCostJpy
		// A fresh admin counter restarts the chain; the customer's previous
		// proposal no longer stands.
		rec.CustomerCounterOffer = nil
		event = notify.EventCounterOffer

	default:
		return nil, model.NewDomainError(model.ErrCodeMissingField, fmt.Sprintf("unknown decision action %q", req.Action))
	}

	if err = s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_request_id", rec.ID.String()).
		Str("action", req.Action).
		Str("status", string(rec.Status)).
		Msg("admin decision applied")

	s.afterCommit(ctx, rec, req.Action, notify.ForCustomer(event, rec))

	return rec, nil
}

// counterAmount resolves the admin's counter-offer price: an explicit amount
// wins, otherwise the quote is computed from the listing price, the shipping
// estimate and the current exchange rate.
func (s *negotiationService) counterAmount(ctx context.Context, rec *model.BidRequest, req *DecideRequest) (float64, error) {
	if req.CounterOfferAmount != nil {
		if *req.CounterOfferAmount <= 0 {
			return 0, model.NewDomainError(model.ErrCodeMissingField, "counterOfferAmount must be positive")
		}
		return *req.CounterOfferAmount, nil
	}

	var shipping int64
	if req.ShippingCostJpy != nil {
		shipping = *req.ShippingCostJpy
	} else if rec.ShippingCostJpy != nil {
		shipping = *rec.ShippingCostJpy
	}

	rate, err := s.rates.USDJPY(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("exchange rate lookup failed")
		return 0, model.ErrUpstreamFailure
	}

	amount, err := pricing.Quote(rec.ProductPrice, shipping, rate)
	if err != nil {
		return 0, fmt.Errorf("failed to compute counter-offer quote: %w", err)
	}

	return amount, nil
}

// CustomerRespond applies the customer's response to a counter-offer.
func (s *negotiationService) CustomerRespond(ctx context.Context, actor model.Actor, id uuid.UUID, req *RespondRequest) (rec *model.BidRequest, err error) {
	defer func() { metrics.ObserveTransition("customer_respond", err) }()

	rec, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = s.policy.RequireRecordCustomer(actor, rec); err != nil {
		return nil, err
	}

	if req == nil {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "response action is required")
	}

	switch rec.State() {
	case model.StateCounterByAdmin, model.StateCounterByCustomer:
	default:
		// Includes pending-deletion records: a rejected counter chain blocks
		// any further customer move.
		return nil, model.ErrIllegalTransition
	}

	var adminAction string

	switch req.Action {
	case ActionAcceptCounter:
		now := time.Now().UTC()
		rec.Status = model.StatusApproved
		rec.ApprovedAt = &now
		// The customer took the admin's number; any counter of their own is
		// kept but marked overridden for the final-price tie-break.
		rec.CustomerCounterOfferUsed = true
		adminAction = "accepted the counter-offer"

	case ActionRejectCounter:
		rec.AdminNeedsConfirm = true
		by := model.RejectedByCustomer
		rec.CounterRejectedBy = &by
		adminAction = "rejected the counter-offer"

	case ActionCustomerCounter:
		if req.Amount == nil || *req.Amount <= 0 {
			return nil, model.NewDomainError(model.ErrCodeMissingField, "a positive counter amount is required")
		}
		rec.CustomerCounterOffer = req.Amount
		adminAction = "sent a counter-offer"

	default:
		return nil, model.NewDomainError(model.ErrCodeMissingField, fmt.Sprintf("unknown response action %q", req.Action))
	}

	if err = s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_request_id", rec.ID.String()).
		Str("action", req.Action).
		Msg("customer response applied")

	s.afterCommit(ctx, rec, req.Action, notify.ForAdmin(s.admin, rec, adminAction))

	return rec, nil
}

// SetFinalStatus records the real-world auction outcome.
func (s *negotiationService) SetFinalStatus(ctx context.Context, actor model.Actor, id uuid.UUID, finalStatus model.FinalStatus) (rec *model.BidRequest, err error) {
	defer func() { metrics.ObserveTransition("set_final_status", err) }()

	if err = s.policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	if finalStatus != model.FinalStatusWon && finalStatus != model.FinalStatusLost {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "finalStatus must be won or lost")
	}

	rec, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// ended_check_needed is only a parking state set by the end checker; the
	// admin decision is still open.
	if rec.State() != model.StateApproved {
		return nil, model.ErrIllegalTransition
	}

	rec.FinalStatus = finalStatus

	event := notify.EventLost
	if finalStatus == model.FinalStatusWon {
		price := pricing.FinalPrice(rec)
		rec.FinalPrice = &price
		event = notify.EventWon
	}

	if err = s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_request_id", rec.ID.String()).
		Str("final_status", string(finalStatus)).
		Msg("final status recorded")

	s.afterCommit(ctx, rec, string(finalStatus), notify.ForCustomer(event, rec))

	return rec, nil
}

// ConfirmOutcome acknowledges a terminal outcome.
func (s *negotiationService) ConfirmOutcome(ctx context.Context, actor model.Actor, id uuid.UUID, message *string) (res *ConfirmResult, err error) {
	defer func() { metrics.ObserveTransition("confirm_outcome", err) }()

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = s.policy.RequireRecordCustomerOrAdmin(actor, rec); err != nil {
		return nil, err
	}

	if rec.Terminal() {
		// Rejected negotiations and lost auctions leave no history behind.
		if _, err = s.repo.Delete(ctx, rec.ID); err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("bid_request_id", rec.ID.String()).
			Str("state", string(rec.State())).
			Msg("terminal bid request confirmed and deleted")
		s.publish(rec, "deleted")
		return &ConfirmResult{Deleted: true}, nil
	}

	if rec.State() != model.StateWon {
		return nil, model.ErrIllegalTransition
	}

	// Won purchases are confirmed by the customer alone; the admin's confirm
	// role is limited to deleting terminal records above.
	if err = s.policy.RequireRecordCustomer(actor, rec); err != nil {
		return nil, err
	}

	rec.CustomerConfirmed = true
	rec.CustomerMessage = message

	if err = s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_request_id", rec.ID.String()).
		Msg("won bid request confirmed as purchased")

	s.afterCommit(ctx, rec, "confirmed", notify.ForAdmin(s.admin, rec, "confirmed the purchase"))

	return &ConfirmResult{Request: rec}, nil
}

// SetPaid updates the payment flag of a won bid request.
func (s *negotiationService) SetPaid(ctx context.Context, actor model.Actor, id uuid.UUID, paid bool) (rec *model.BidRequest, err error) {
	defer func() { metrics.ObserveTransition("set_paid", err) }()

	if err = s.policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	rec, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.FinalStatus != model.FinalStatusWon {
		return nil, model.ErrPaymentNotWon
	}

	rec.Paid = paid

	if err = s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_request_id", rec.ID.String()).
		Bool("paid", paid).
		Msg("payment flag updated")

	s.publish(rec, "paid_updated")

	return rec, nil
}

// ListOpen retrieves the records still in negotiation, scoped to the actor.
func (s *negotiationService) ListOpen(ctx context.Context, actor model.Actor) ([]model.BidRequest, error) {
	if err := s.policy.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	scope := actor.Email
	if actor.IsAdmin() {
		scope = ""
	}

	return s.repo.ListOpen(ctx, scope)
}

// ListPurchased retrieves won and confirmed records, scoped to the actor.
func (s *negotiationService) ListPurchased(ctx context.Context, actor model.Actor, customerEmail string) ([]model.BidRequest, error) {
	if err := s.policy.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	scope := actor.Email
	if actor.IsAdmin() {
		scope = customerEmail // empty means all customers
	} else if customerEmail != "" && customerEmail != actor.Email {
		return nil, model.ErrForbidden
	}

	return s.repo.ListPurchased(ctx, scope)
}

// load fetches a record, translating absence into the NotFound domain error.
func (s *negotiationService) load(ctx context.Context, id uuid.UUID) (*model.BidRequest, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, model.ErrNotFound
	}
	return rec, nil
}

// afterCommit runs the best-effort side effects of a committed transition.
// Neither delivery failures nor slow subscribers reach the caller.
func (s *negotiationService) afterCommit(ctx context.Context, rec *model.BidRequest, event string, msg notify.Message) {
	report := s.notifier.Dispatch(ctx, msg)
	metrics.ObserveNotifications(report.Sent, report.Failed)
	s.publish(rec, event)
}

func (s *negotiationService) publish(rec *model.BidRequest, event string) {
	if s.publisher != nil {
		s.publisher.Publish(rec.CustomerEmail, event, rec)
	}
}
