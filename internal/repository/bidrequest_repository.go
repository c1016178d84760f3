package repository

import (
	"context"
	"fmt"

	"bid-broker/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// bidRequestRepository implements BidRequestRepository using PostgreSQL.
type bidRequestRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewBidRequestRepository creates a new PostgreSQL-backed bid request repository.
func NewBidRequestRepository(pool *pgxpool.Pool, logger zerolog.Logger) BidRequestRepository {
	return &bidRequestRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "bid_request").Logger(),
	}
}

const bidRequestColumns = `
	id, product_id, product_title, product_url, product_image, product_price,
	product_end_time, max_bid, customer_name, customer_email, language,
	status, created_at, approved_at, reject_reason,
	counter_offer, shipping_cost_jpy, customer_counter_offer,
	customer_counter_offer_used, counter_rejected_by,
	final_status, final_price, customer_confirmed, customer_message,
	admin_needs_confirm, paid, version`

// scanBidRequest scans one row in bidRequestColumns order.
func scanBidRequest(row pgx.Row) (*model.BidRequest, error) {
	var b model.BidRequest
	var finalStatus *string
	err := row.Scan(
		&b.ID, &b.ProductID, &b.ProductTitle, &b.ProductURL, &b.ProductImage, &b.ProductPrice,
		&b.ProductEndTime, &b.MaxBid, &b.CustomerName, &b.CustomerEmail, &b.Language,
		&b.Status, &b.CreatedAt, &b.ApprovedAt, &b.RejectReason,
		&b.CounterOffer, &b.ShippingCostJpy, &b.CustomerCounterOffer,
		&b.CustomerCounterOfferUsed, &b.CounterRejectedBy,
		&finalStatus, &b.FinalPrice, &b.CustomerConfirmed, &b.CustomerMessage,
		&b.AdminNeedsConfirm, &b.Paid, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if finalStatus != nil {
		b.FinalStatus = model.FinalStatus(*finalStatus)
	}
	return &b, nil
}

// finalStatusParam maps the empty final status onto SQL NULL.
func finalStatusParam(fs model.FinalStatus) *string {
	if fs == model.FinalStatusNone {
		return nil
	}
	s := string(fs)
	return &s
}

// Create inserts a new bid request.
func (r *bidRequestRepository) Create(ctx context.Context, req *model.BidRequest) error {
	query := `
		INSERT INTO bid_requests (
			id, product_id, product_title, product_url, product_image, product_price,
			product_end_time, max_bid, customer_name, customer_email, language,
			status, created_at, approved_at, reject_reason,
			counter_offer, shipping_cost_jpy, customer_counter_offer,
			customer_counter_offer_used, counter_rejected_by,
			final_status, final_price, customer_confirmed, customer_message,
			admin_needs_confirm, paid, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.ProductID, req.ProductTitle, req.ProductURL, req.ProductImage, req.ProductPrice,
		req.ProductEndTime, req.MaxBid, req.CustomerName, req.CustomerEmail, req.Language,
		req.Status, req.CreatedAt, req.ApprovedAt, req.RejectReason,
		req.CounterOffer, req.ShippingCostJpy, req.CustomerCounterOffer,
		req.CustomerCounterOfferUsed, req.CounterRejectedBy,
		finalStatusParam(req.FinalStatus), req.FinalPrice, req.CustomerConfirmed, req.CustomerMessage,
		req.AdminNeedsConfirm, req.Paid, req.Version,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("bid_request_id", req.ID.String()).
			Msg("failed to create bid request")
		return fmt.Errorf("failed to create bid request: %w", err)
	}

	r.logger.Debug().
		Str("bid_request_id", req.ID.String()).
		Str("customer_email", req.CustomerEmail).
		Msg("bid request created")

	return nil
}

// GetByID retrieves a bid request by its ID.
func (r *bidRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.BidRequest, error) {
	query := `SELECT ` + bidRequestColumns + ` FROM bid_requests WHERE id = $1`

	b, err := scanBidRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("bid_request_id", id.String()).Msg("bid request not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("bid_request_id", id.String()).Msg("failed to query bid request")
		return nil, fmt.Errorf("failed to query bid request: %w", err)
	}

	return b, nil
}

// Update persists the record guarded by its optimistic version.
func (r *bidRequestRepository) Update(ctx context.Context, req *model.BidRequest) error {
	query := `
		UPDATE bid_requests SET
			status = $1,
			approved_at = $2,
			reject_reason = $3,
			counter_offer = $4,
			shipping_cost_jpy = $5,
			customer_counter_offer = $6,
			customer_counter_offer_used = $7,
			counter_rejected_by = $8,
			final_status = $9,
			final_price = $10,
			customer_confirmed = $11,
			customer_message = $12,
			admin_needs_confirm = $13,
			paid = $14,
			version = version + 1
		WHERE id = $15 AND version = $16
	`

	tag, err := r.pool.Exec(ctx, query,
		req.Status, req.ApprovedAt, req.RejectReason,
		req.CounterOffer, req.ShippingCostJpy, req.CustomerCounterOffer,
		req.CustomerCounterOfferUsed, req.CounterRejectedBy,
		finalStatusParam(req.FinalStatus), req.FinalPrice,
		req.CustomerConfirmed, req.CustomerMessage,
		req.AdminNeedsConfirm, req.Paid,
		req.ID, req.Version,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("bid_request_id", req.ID.String()).
			Msg("failed to update bid request")
		return fmt.Errorf("failed to update bid request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the row is gone or someone raced us. Look again to tell the two apart.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM bid_requests WHERE id = $1)`, req.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check bid request existence: %w", err)
		}
		if !exists {
			return model.ErrNotFound
		}
		r.logger.Warn().
			Str("bid_request_id", req.ID.String()).
			Int64("version", req.Version).
			Msg("bid request version conflict")
		return model.ErrVersionConflict
	}

	req.Version++

	r.logger.Debug().
		Str("bid_request_id", req.ID.String()).
		Str("status", string(req.Status)).
		Msg("bid request updated")

	return nil
}

// Delete removes a bid request outright.
func (r *bidRequestRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bid_requests WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("bid_request_id", id.String()).Msg("failed to delete bid request")
		return false, fmt.Errorf("failed to delete bid request: %w", err)
	}

	deleted := tag.RowsAffected() > 0
	if deleted {
		r.logger.Info().Str("bid_request_id", id.String()).Msg("bid request deleted")
	}

	return deleted, nil
}

// CountOpenByCustomer counts a customer's unconfirmed bid requests.
func (r *bidRequestRepository) CountOpenByCustomer(ctx context.Context, customerEmail string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bid_requests
		WHERE customer_email = $1 AND customer_confirmed <> TRUE
	`, customerEmail).Scan(&count)
	if err != nil {
		r.logger.Error().Err(err).Str("customer_email", customerEmail).Msg("failed to count open bid requests")
		return 0, fmt.Errorf("failed to count open bid requests: %w", err)
	}

	return count, nil
}

// ListOpen retrieves unconfirmed bid requests ordered by creation time ascending.
func (r *bidRequestRepository) ListOpen(ctx context.Context, customerEmail string) ([]model.BidRequest, error) {
	query := `
		SELECT ` + bidRequestColumns + `
		FROM bid_requests
		WHERE customer_confirmed <> TRUE
		  AND ($1 = '' OR customer_email = $1)
		ORDER BY created_at ASC
	`

	return r.list(ctx, query, customerEmail)
}

// ListPurchased retrieves won and confirmed bid requests ordered by creation time descending.
func (r *bidRequestRepository) ListPurchased(ctx context.Context, customerEmail string) ([]model.BidRequest, error) {
	query := `
		SELECT ` + bidRequestColumns + `
		FROM bid_requests
		WHERE final_status = 'won'
		  AND customer_confirmed = TRUE
		  AND ($1 = '' OR customer_email = $1)
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, customerEmail)
}

// ListEndedCandidates retrieves approved bid requests whose auction has ended
// without a recorded outcome.
func (r *bidRequestRepository) ListEndedCandidates(ctx context.Context) ([]model.BidRequest, error) {
	query := `
		SELECT ` + bidRequestColumns + `
		FROM bid_requests
		WHERE status = 'approved'
		  AND final_status IS NULL
		  AND product_end_time IS NOT NULL
		  AND product_end_time <= NOW()
		ORDER BY product_end_time ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query ended bid requests")
		return nil, fmt.Errorf("failed to query ended bid requests: %w", err)
	}
	defer rows.Close()

	return collectBidRequests(rows)
}

// list runs a query taking a single customer-email filter parameter.
func (r *bidRequestRepository) list(ctx context.Context, query, customerEmail string) ([]model.BidRequest, error) {
	rows, err := r.pool.Query(ctx, query, customerEmail)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("customer_email", customerEmail).
			Msg("failed to query bid requests")
		return nil, fmt.Errorf("failed to query bid requests: %w", err)
	}
	defer rows.Close()

	return collectBidRequests(rows)
}

func collectBidRequests(rows pgx.Rows) ([]model.BidRequest, error) {
	var requests []model.BidRequest
	for rows.Next() {
		b, err := scanBidRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid request: %w", err)
		}
		requests = append(requests, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bid requests: %w", err)
	}

	return requests, nil
}
