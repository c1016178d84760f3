package repository

import (
	"context"

	"bid-broker/internal/model"

	"github.com/google/uuid"
)

// BidRequestRepository defines the interface for bid request data access.
type BidRequestRepository interface {
	// Create inserts a new bid request.
	Create(ctx context.Context, req *model.BidRequest) error

	// GetByID retrieves a bid request by its ID. Returns (nil, nil) when the
	// record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.BidRequest, error)

	// Update persists all mutable fields of the bid request. The stored row
	// must still carry req.Version; on success the version is bumped both in
	// the row and on req. A concurrent modification yields
	// model.ErrVersionConflict.
	Update(ctx context.Context, req *model.BidRequest) error

	// Delete removes a bid request outright. Returns false when the record
	// was already gone.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// CountOpenByCustomer counts a customer's bid requests that have not yet
	// been confirmed away.
	CountOpenByCustomer(ctx context.Context, customerEmail string) (int, error)

	// ListOpen retrieves unconfirmed bid requests ordered by creation time
	// ascending. An empty customerEmail returns all customers' rows.
	ListOpen(ctx context.Context, customerEmail string) ([]model.BidRequest, error)

	// ListPurchased retrieves won and customer-confirmed bid requests ordered
	// by creation time descending. An empty customerEmail returns all
	// customers' rows.
	ListPurchased(ctx context.Context, customerEmail string) ([]model.BidRequest, error)

	// ListEndedCandidates retrieves approved bid requests whose auction end
	// time has passed and whose final status is still unset.
	ListEndedCandidates(ctx context.Context) ([]model.BidRequest, error)
}
