package service

import (
	"context"

	"bid-broker/internal/model"
	"bid-broker/internal/notify"

	"github.com/google/uuid"
)

// CreateBidRequest is the payload for opening a new negotiation.
type CreateBidRequest struct {
	ProductURL    string         `json:"productUrl"`
	MaxBid        float64        `json:"maxBid"`
	CustomerEmail string         `json:"customerEmail,omitempty"` // admin-only override
	CustomerName  string         `json:"customerName"`
	Language      model.Language `json:"language"`
}

// Admin decision actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionCounter = "counter"
)

// DecideRequest is the admin's decision on a bid request.
type DecideRequest struct {
	Action             string   `json:"action"`
	Reason             *string  `json:"reason,omitempty"`
	CounterOfferAmount *float64 `json:"counterOfferAmount,omitempty"`
	ShippingCostJpy    *int64   `json:"shippingCostJpy,omitempty"`
}

// Customer response actions
const (
	ActionAcceptCounter   = "accept_counter"
	ActionRejectCounter   = "reject_counter"
	ActionCustomerCounter = "counter"
)

// RespondRequest is the customer's response to a counter-offer.
type RespondRequest struct {
	Action string   `json:"action"`
	Amount *float64 `json:"amount,omitempty"`
}

// ConfirmResult reports what ConfirmOutcome did with the record.
type ConfirmResult struct {
	Deleted bool              `json:"deleted"`
	Request *model.BidRequest `json:"request,omitempty"`
}

// NegotiationService owns the bid request lifecycle: transitions, actor
// authorization, pricing, and notification side effects.
type NegotiationService interface {
	// Create opens a new pending bid request after snapshotting the listing.
	Create(ctx context.Context, actor model.Actor, req *CreateBidRequest) (*model.BidRequest, error)

	// AdminDecide applies an admin decision: approve, reject or counter.
	AdminDecide(ctx context.Context, actor model.Actor, id uuid.UUID, req *DecideRequest) (*model.BidRequest, error)

	// CustomerRespond applies the customer's response to a counter-offer.
	CustomerRespond(ctx context.Context, actor model.Actor, id uuid.UUID, req *RespondRequest) (*model.BidRequest, error)

	// SetFinalStatus records the real-world auction outcome (won or lost).
	SetFinalStatus(ctx context.Context, actor model.Actor, id uuid.UUID, finalStatus model.FinalStatus) (*model.BidRequest, error)

	// ConfirmOutcome acknowledges a terminal outcome: deletes rejected or
	// lost records, marks won records as purchased.
	ConfirmOutcome(ctx context.Context, actor model.Actor, id uuid.UUID, message *string) (*ConfirmResult, error)

	// SetPaid updates the payment flag of a won bid request.
	SetPaid(ctx context.Context, actor model.Actor, id uuid.UUID, paid bool) (*model.BidRequest, error)

	// ListOpen retrieves the records still in negotiation, scoped to the actor.
	ListOpen(ctx context.Context, actor model.Actor) ([]model.BidRequest, error)

	// ListPurchased retrieves won and confirmed records, scoped to the actor.
	ListPurchased(ctx context.Context, actor model.Actor, customerEmail string) ([]model.BidRequest, error)
}

// NotificationSink is the notification fan-out consumed by the engine.
// Delivery is best-effort; only aggregate counts come back.
type NotificationSink interface {
	Dispatch(ctx context.Context, msg notify.Message) notify.Report
}

// Publisher pushes record-change events to live subscribers. Implementations
// must not block the caller.
type Publisher interface {
	Publish(customerEmail string, event string, req *model.BidRequest)
}
