package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bid-broker/internal/listing"
	"bid-broker/internal/model"
	"bid-broker/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBidRequestRepository is a mock implementation of BidRequestRepository.
type MockBidRequestRepository struct {
	mock.Mock
}

func (m *MockBidRequestRepository) Create(ctx context.Context, req *model.BidRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBidRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.BidRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BidRequest), args.Error(1)
}

func (m *MockBidRequestRepository) Update(ctx context.Context, req *model.BidRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBidRequestRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBidRequestRepository) CountOpenByCustomer(ctx context.Context, customerEmail string) (int, error) {
	args := m.Called(ctx, customerEmail)
	return args.Int(0), args.Error(1)
}

func (m *MockBidRequestRepository) ListOpen(ctx context.Context, customerEmail string) ([]model.BidRequest, error) {
	args := m.Called(ctx, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BidRequest), args.Error(1)
}

func (m *MockBidRequestRepository) ListPurchased(ctx context.Context, customerEmail string) ([]model.BidRequest, error) {
	args := m.Called(ctx, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BidRequest), args.Error(1)
}

func (m *MockBidRequestRepository) ListEndedCandidates(ctx context.Context) ([]model.BidRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BidRequest), args.Error(1)
}

// MockListingClient is a mock implementation of listing.Client.
type MockListingClient struct {
	mock.Mock
}

func (m *MockListingClient) Fetch(ctx context.Context, listingURL string) (*listing.Snapshot, error) {
	args := m.Called(ctx, listingURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Snapshot), args.Error(1)
}

// MockRatesProvider is a mock implementation of rates.Provider.
type MockRatesProvider struct {
	mock.Mock
}

func (m *MockRatesProvider) USDJPY(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

// MockNotificationSink is a mock implementation of NotificationSink.
type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) Dispatch(ctx context.Context, msg notify.Message) notify.Report {
	args := m.Called(ctx, msg)
	return args.Get(0).(notify.Report)
}

// MockPublisher is a mock implementation of Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(customerEmail string, event string, req *model.BidRequest) {
	m.Called(customerEmail, event, req)
}

const testAdminEmail = "admin@example.com"

var (
	adminActor    = model.Actor{Email: testAdminEmail, Name: "Admin", Role: model.RoleAdmin}
	customerActor = model.Actor{Email: "alice@example.com", Name: "Alice", Role: model.RoleCustomer}
	strangerActor = model.Actor{Email: "mallory@example.com", Name: "Mallory", Role: model.RoleCustomer}
)

type testMocks struct {
	repo     *MockBidRequestRepository
	listings *MockListingClient
	rates    *MockRatesProvider
	sink     *MockNotificationSink
	pub      *MockPublisher
}

func newTestService() (NegotiationService, *testMocks) {
	m := &testMocks{
		repo:     new(MockBidRequestRepository),
		listings: new(MockListingClient),
		rates:    new(MockRatesProvider),
		sink:     new(MockNotificationSink),
		pub:      new(MockPublisher),
	}
	svc := NewNegotiationService(m.repo, m.listings, m.rates, m.sink, m.pub, notify.AdminContact{Email: testAdminEmail}, zerolog.Nop())
	return svc, m
}

// allowSideEffects lets the post-commit fan-out run without per-test plumbing.
func (m *testMocks) allowSideEffects() {
	m.sink.On("Dispatch", mock.Anything, mock.Anything).Return(notify.Report{Sent: 1}).Maybe()
	m.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Maybe()
}

func pendingRequest() *model.BidRequest {
	return &model.BidRequest{
		ID:            uuid.New(),
		ProductID:     "x123456789",
		ProductTitle:  "Vintage Camera",
		ProductURL:    "https://auctions.example.jp/x123456789",
		ProductPrice:  50000,
		MaxBid:        450,
		CustomerName:  "Alice",
		CustomerEmail: customerActor.Email,
		Language:      model.LanguageSpanish,
		Status:        model.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func counteredRequest(counter float64) *model.BidRequest {
	rec := pendingRequest()
	rec.Status = model.StatusCounterOffer
	rec.CounterOffer = &counter
	return rec
}

func TestNegotiationService_Create_Success(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	shipping := int64(2000)
	snapshot := &listing.Snapshot{
		ProductID:       "x123456789",
		Title:           "Vintage Camera",
		PriceJpy:        50000,
		Image:           "https://img.example.jp/x123456789.jpg",
		ShippingCostJpy: &shipping,
	}

	m.repo.On("CountOpenByCustomer", ctx, customerActor.Email).Return(0, nil)
	m.listings.On("Fetch", ctx, "https://auctions.example.jp/x123456789").Return(snapshot, nil)
	m.repo.On("Create", ctx, mock.AnythingOfType("*model.BidRequest")).Return(nil)

	rec, err := svc.Create(ctx, customerActor, &CreateBidRequest{
		ProductURL: "https://auctions.example.jp/x123456789",
		MaxBid:     450,
		Language:   model.LanguageSpanish,
	})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, model.StatePending, rec.State())
	assert.Equal(t, "Vintage Camera", rec.ProductTitle)
	assert.Equal(t, int64(50000), rec.ProductPrice)
	assert.Equal(t, customerActor.Email, rec.CustomerEmail)
	require.NotNil(t, rec.ShippingCostJpy)
	assert.Equal(t, int64(2000), *rec.ShippingCostJpy)
	assert.NotEqual(t, uuid.Nil, rec.ID)

	m.repo.AssertExpectations(t)
	m.listings.AssertExpectations(t)
}

func TestNegotiationService_Create_DefaultsLanguage(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	m.repo.On("CountOpenByCustomer", ctx, customerActor.Email).Return(0, nil)
	m.listings.On("Fetch", ctx, mock.Anything).Return(&listing.Snapshot{
		ProductID: "p1", Title: "Item", PriceJpy: 1000,
	}, nil)
	m.repo.On("Create", ctx, mock.Anything).Return(nil)

	rec, err := svc.Create(ctx, customerActor, &CreateBidRequest{
		ProductURL: "https://auctions.example.jp/p1",
		MaxBid:     50,
		Language:   "de",
	})

	require.NoError(t, err)
	assert.Equal(t, model.LanguageSpanish, rec.Language)
}

func TestNegotiationService_Create_MissingFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, customerActor, &CreateBidRequest{MaxBid: 100})
	assertDomainCode(t, err, model.ErrCodeMissingField)

	_, err = svc.Create(ctx, customerActor, &CreateBidRequest{ProductURL: "https://x", MaxBid: 0})
	assertDomainCode(t, err, model.ErrCodeMissingField)
}

func TestNegotiationService_Create_OpenRequestLimit(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.repo.On("CountOpenByCustomer", ctx, customerActor.Email).Return(10, nil)

	_, err := svc.Create(ctx, customerActor, &CreateBidRequest{
		ProductURL: "https://auctions.example.jp/p1",
		MaxBid:     100,
	})

	assert.ErrorIs(t, err, model.ErrOpenRequestLimit)
	m.listings.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNegotiationService_Create_ScrapeFailure(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.repo.On("CountOpenByCustomer", ctx, customerActor.Email).Return(0, nil)
	m.listings.On("Fetch", ctx, mock.Anything).Return(nil, errors.New("scraper down"))

	_, err := svc.Create(ctx, customerActor, &CreateBidRequest{
		ProductURL: "https://auctions.example.jp/p1",
		MaxBid:     100,
	})

	assert.ErrorIs(t, err, model.ErrUpstreamFailure)
	m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNegotiationService_Create_CustomerCannotImpersonate(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, customerActor, &CreateBidRequest{
		ProductURL:    "https://auctions.example.jp/p1",
		MaxBid:        100,
		CustomerEmail: "bob@example.com",
	})

	assert.ErrorIs(t, err, model.ErrForbidden)
	m.repo.AssertNotCalled(t, "CountOpenByCustomer", mock.Anything, mock.Anything)
}

func TestNegotiationService_Create_AdminOnBehalfOfCustomer(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	m.repo.On("CountOpenByCustomer", ctx, "bob@example.com").Return(0, nil)
	m.listings.On("Fetch", ctx, mock.Anything).Return(&listing.Snapshot{
		ProductID: "p1", Title: "Item", PriceJpy: 1000,
	}, nil)
	m.repo.On("Create", ctx, mock.Anything).Return(nil)

	rec, err := svc.Create(ctx, adminActor, &CreateBidRequest{
		ProductURL:    "https://auctions.example.jp/p1",
		MaxBid:        100,
		CustomerEmail: "bob@example.com",
		CustomerName:  "Bob",
	})

	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", rec.CustomerEmail)
}

func TestNegotiationService_Create_NotifierFailureDoesNotFail(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.repo.On("CountOpenByCustomer", ctx, customerActor.Email).Return(0, nil)
	m.listings.On("Fetch", ctx, mock.Anything).Return(&listing.Snapshot{
		ProductID: "p1", Title: "Item", PriceJpy: 1000,
	}, nil)
	m.repo.On("Create", ctx, mock.Anything).Return(nil)
	m.sink.On("Dispatch", mock.Anything, mock.Anything).Return(notify.Report{Failed: 2})
	m.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything)

	rec, err := svc.Create(ctx, customerActor, &CreateBidRequest{
		ProductURL: "https://auctions.example.jp/p1",
		MaxBid:     100,
	})

	require.NoError(t, err)
	require.NotNil(t, rec)
	m.sink.AssertExpectations(t)
}

func TestNegotiationService_AdminDecide_Approve(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: ActionApprove})

	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, model.StateApproved, got.State())
	require.NotNil(t, got.ApprovedAt)
	m.repo.AssertExpectations(t)
}

func TestNegotiationService_AdminDecide_RequiresAdmin(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	_, err := svc.AdminDecide(ctx, customerActor, uuid.New(), &DecideRequest{Action: ActionApprove})
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = svc.AdminDecide(ctx, model.Actor{}, uuid.New(), &DecideRequest{Action: ActionApprove})
	assert.ErrorIs(t, err, model.ErrUnauthorised)

	m.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestNegotiationService_AdminDecide_NotFound(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	id := uuid.New()
	m.repo.On("GetByID", ctx, id).Return(nil, nil)

	_, err := svc.AdminDecide(ctx, adminActor, id, &DecideRequest{Action: ActionApprove})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNegotiationService_AdminDecide_ApproveAfterOwnCounterIsIllegal(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := counteredRequest(500)
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: ActionApprove})
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestNegotiationService_AdminDecide_ApproveCustomerCounter(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := counteredRequest(500)
	customerCounter := 480.0
	rec.CustomerCounterOffer = &customerCounter
	require.Equal(t, model.StateCounterByCustomer, rec.State())

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: ActionApprove})

	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, got.State())
	// Approving the customer's number keeps it live for the final price.
	require.NotNil(t, got.CustomerCounterOffer)
	assert.False(t, got.CustomerCounterOfferUsed)
}

func TestNegotiationService_AdminDecide_Reject(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	reason := "listing looks fraudulent"
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: ActionReject, Reason: &reason})

	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, model.StateRejected, got.State())
	require.NotNil(t, got.RejectReason)
	assert.Equal(t, reason, *got.RejectReason)
	assert.False(t, got.AdminNeedsConfirm)
}

func TestNegotiationService_AdminDecide_RejectCustomerCounterParksForDeletion(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := counteredRequest(500)
	customerCounter := 480.0
	rec.CustomerCounterOffer = &customerCounter

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: ActionReject})

	require.NoError(t, err)
	assert.True(t, got.AdminNeedsConfirm)
	assert.Equal(t, model.StatePendingDeletion, got.State())
	require.NotNil(t, got.CounterRejectedBy)
	assert.Equal(t, model.RejectedByAdmin, *got.CounterRejectedBy)
}

func TestNegotiationService_AdminDecide_CounterExplicitAmount(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	amount := 500.0
	shipping := int64(2000)

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{
		Action:             ActionCounter,
		CounterOfferAmount: &amount,
		ShippingCostJpy:    &shipping,
	})

	require.NoError(t, err)
	assert.Equal(t, model.StateCounterByAdmin, got.State())
	require.NotNil(t, got.CounterOffer)
	assert.Equal(t, 500.0, *got.CounterOffer)
	require.NotNil(t, got.ShippingCostJpy)
	assert.Equal(t, int64(2000), *got.ShippingCostJpy)
	m.rates.AssertNotCalled(t, "USDJPY", mock.Anything)
}

func TestNegotiationService_AdminDecide_CounterQuotedFromRate(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest() // 50000 JPY listing
	shipping := int64(2000)

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.rates.On("USDJPY", ctx).Return(150.0, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{
		Action:          ActionCounter,
		ShippingCostJpy: &shipping,
	})

	require.NoError(t, err)
	require.NotNil(t, got.CounterOffer)
	// (50000 + 2000 + 1350) / 0.8 / 150, rounded up to the next $10
	assert.Equal(t, 450.0, *got.CounterOffer)
	m.rates.AssertExpectations(t)
}

func TestNegotiationService_AdminDecide_CounterRateLookupFails(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.rates.On("USDJPY", ctx).Return(0.0, errors.New("rate service down"))

	_, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: ActionCounter})

	assert.ErrorIs(t, err, model.ErrUpstreamFailure)
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestNegotiationService_AdminDecide_ReCounterClearsCustomerProposal(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := counteredRequest(500)
	customerCounter := 480.0
	rec.CustomerCounterOffer = &customerCounter
	amount := 490.0

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{
		Action:             ActionCounter,
		CounterOfferAmount: &amount,
	})

	require.NoError(t, err)
	assert.Nil(t, got.CustomerCounterOffer)
	assert.Equal(t, model.StateCounterByAdmin, got.State())
	assert.Equal(t, 490.0, *got.CounterOffer)
}

func TestNegotiationService_AdminDecide_UnknownAction(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.AdminDecide(ctx, adminActor, rec.ID, &DecideRequest{Action: "escalate"})
	assertDomainCode(t, err, model.ErrCodeMissingField)
}

func TestNegotiationService_CustomerRespond_AcceptCounter(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := counteredRequest(500)
	customerCounter := 480.0
	rec.CustomerCounterOffer = &customerCounter

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{Action: ActionAcceptCounter})

	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedAt)
	// The admin's number prevails even though the customer had countered.
	assert.True(t, got.CustomerCounterOfferUsed)
	require.NotNil(t, got.CustomerCounterOffer)
}

func TestNegotiationService_CustomerRespond_RejectCounter(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := counteredRequest(500)
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{Action: ActionRejectCounter})

	require.NoError(t, err)
	assert.True(t, got.AdminNeedsConfirm)
	assert.Equal(t, model.StatePendingDeletion, got.State())
	require.NotNil(t, got.CounterRejectedBy)
	assert.Equal(t, model.RejectedByCustomer, *got.CounterRejectedBy)
}

func TestNegotiationService_CustomerRespond_Counter(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := counteredRequest(500)
	amount := 480.0

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{
		Action: ActionCustomerCounter,
		Amount: &amount,
	})

	require.NoError(t, err)
	assert.Equal(t, model.StateCounterByCustomer, got.State())
	require.NotNil(t, got.CustomerCounterOffer)
	assert.Equal(t, 480.0, *got.CustomerCounterOffer)
}

func TestNegotiationService_CustomerRespond_CounterRequiresAmount(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := counteredRequest(500)
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{Action: ActionCustomerCounter})
	assertDomainCode(t, err, model.ErrCodeMissingField)

	negative := -5.0
	_, err = svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{Action: ActionCustomerCounter, Amount: &negative})
	assertDomainCode(t, err, model.ErrCodeMissingField)
}

func TestNegotiationService_CustomerRespond_OnlyRecordCustomer(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := counteredRequest(500)
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.CustomerRespond(ctx, strangerActor, rec.ID, &RespondRequest{Action: ActionAcceptCounter})
	assert.ErrorIs(t, err, model.ErrForbidden)

	// Admins decide through AdminDecide, never through the customer surface.
	_, err = svc.CustomerRespond(ctx, adminActor, rec.ID, &RespondRequest{Action: ActionAcceptCounter})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestNegotiationService_CustomerRespond_IllegalFromPending(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{Action: ActionAcceptCounter})
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestNegotiationService_CustomerRespond_BlockedAfterCounterRejection(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := counteredRequest(500)
	rec.AdminNeedsConfirm = true
	by := model.RejectedByAdmin
	rec.CounterRejectedBy = &by

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	amount := 470.0
	_, err := svc.CustomerRespond(ctx, customerActor, rec.ID, &RespondRequest{
		Action: ActionCustomerCounter,
		Amount: &amount,
	})

	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestNegotiationService_SetFinalStatus_WonUsesAcceptedCounter(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	counter := 500.0
	customerCounter := 480.0
	rec.CounterOffer = &counter
	rec.CustomerCounterOffer = &customerCounter
	rec.CustomerCounterOfferUsed = true

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.SetFinalStatus(ctx, adminActor, rec.ID, model.FinalStatusWon)

	require.NoError(t, err)
	assert.Equal(t, model.FinalStatusWon, got.FinalStatus)
	require.NotNil(t, got.FinalPrice)
	assert.Equal(t, 500.0, *got.FinalPrice)
}

func TestNegotiationService_SetFinalStatus_WonUsesCustomerCounter(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	counter := 500.0
	customerCounter := 480.0
	rec.CounterOffer = &counter
	rec.CustomerCounterOffer = &customerCounter

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.SetFinalStatus(ctx, adminActor, rec.ID, model.FinalStatusWon)

	require.NoError(t, err)
	require.NotNil(t, got.FinalPrice)
	assert.Equal(t, 480.0, *got.FinalPrice)
}

func TestNegotiationService_SetFinalStatus_Lost(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	rec.Status = model.StatusApproved

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.SetFinalStatus(ctx, adminActor, rec.ID, model.FinalStatusLost)

	require.NoError(t, err)
	assert.Equal(t, model.FinalStatusLost, got.FinalStatus)
	assert.Nil(t, got.FinalPrice)
	assert.Equal(t, model.StateLost, got.State())
}

func TestNegotiationService_SetFinalStatus_AllowedFromEndedCheckNeeded(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	rec.FinalStatus = model.FinalStatusEndedCheckNeeded

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.SetFinalStatus(ctx, adminActor, rec.ID, model.FinalStatusWon)

	require.NoError(t, err)
	assert.Equal(t, model.FinalStatusWon, got.FinalStatus)
}

func TestNegotiationService_SetFinalStatus_Validation(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	_, err := svc.SetFinalStatus(ctx, customerActor, uuid.New(), model.FinalStatusWon)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = svc.SetFinalStatus(ctx, adminActor, uuid.New(), model.FinalStatusEndedCheckNeeded)
	assertDomainCode(t, err, model.ErrCodeMissingField)

	rec := pendingRequest()
	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	_, err = svc.SetFinalStatus(ctx, adminActor, rec.ID, model.FinalStatusWon)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestNegotiationService_ConfirmOutcome_DeletesRejected(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	rec.Status = model.StatusRejected

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Delete", ctx, rec.ID).Return(true, nil)
	m.pub.On("Publish", rec.CustomerEmail, "deleted", rec)

	res, err := svc.ConfirmOutcome(ctx, customerActor, rec.ID, nil)

	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Nil(t, res.Request)
	m.repo.AssertExpectations(t)
	m.pub.AssertExpectations(t)
}

func TestNegotiationService_ConfirmOutcome_DeletesLost(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	rec.FinalStatus = model.FinalStatusLost

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Delete", ctx, rec.ID).Return(true, nil)
	m.pub.On("Publish", rec.CustomerEmail, "deleted", rec)

	res, err := svc.ConfirmOutcome(ctx, customerActor, rec.ID, nil)

	require.NoError(t, err)
	assert.True(t, res.Deleted)
}

func TestNegotiationService_ConfirmOutcome_AdminClearsRejectedCounterChain(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := counteredRequest(500)
	rec.AdminNeedsConfirm = true
	by := model.RejectedByCustomer
	rec.CounterRejectedBy = &by

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Delete", ctx, rec.ID).Return(true, nil)
	m.pub.On("Publish", rec.CustomerEmail, "deleted", rec)

	res, err := svc.ConfirmOutcome(ctx, adminActor, rec.ID, nil)

	require.NoError(t, err)
	assert.True(t, res.Deleted)
}

func TestNegotiationService_ConfirmOutcome_MarksWonAsPurchased(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	rec.FinalStatus = model.FinalStatusWon
	price := 450.0
	rec.FinalPrice = &price

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	message := "please ship with extra padding"
	res, err := svc.ConfirmOutcome(ctx, customerActor, rec.ID, &message)

	require.NoError(t, err)
	assert.False(t, res.Deleted)
	require.NotNil(t, res.Request)
	assert.True(t, res.Request.CustomerConfirmed)
	require.NotNil(t, res.Request.CustomerMessage)
	assert.Equal(t, message, *res.Request.CustomerMessage)
	m.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestNegotiationService_ConfirmOutcome_AdminCannotConfirmWon(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	rec.FinalStatus = model.FinalStatusWon
	price := 450.0
	rec.FinalPrice = &price

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.ConfirmOutcome(ctx, adminActor, rec.ID, nil)

	assertDomainCode(t, err, model.ErrCodeForbidden)
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestNegotiationService_ConfirmOutcome_GoneRecordIsNotFound(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	id := uuid.New()
	m.repo.On("GetByID", ctx, id).Return(nil, nil)

	_, err := svc.ConfirmOutcome(ctx, customerActor, id, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNegotiationService_ConfirmOutcome_IllegalWhileOpen(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	rec.Status = model.StatusApproved

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.ConfirmOutcome(ctx, customerActor, rec.ID, nil)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestNegotiationService_SetPaid(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.allowSideEffects()

	rec := pendingRequest()
	rec.Status = model.StatusApproved
	rec.FinalStatus = model.FinalStatusWon

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)
	m.repo.On("Update", ctx, rec).Return(nil)

	got, err := svc.SetPaid(ctx, adminActor, rec.ID, true)

	require.NoError(t, err)
	assert.True(t, got.Paid)
}

func TestNegotiationService_SetPaid_RejectedUnlessWon(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	rec := pendingRequest()
	rec.Status = model.StatusApproved

	m.repo.On("GetByID", ctx, rec.ID).Return(rec, nil)

	_, err := svc.SetPaid(ctx, adminActor, rec.ID, true)
	assert.ErrorIs(t, err, model.ErrPaymentNotWon)
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestNegotiationService_SetPaid_RequiresAdmin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SetPaid(ctx, customerActor, uuid.New(), true)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestNegotiationService_ListOpen_ScopedToCustomer(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.repo.On("ListOpen", ctx, customerActor.Email).Return([]model.BidRequest{*pendingRequest()}, nil)

	records, err := svc.ListOpen(ctx, customerActor)

	require.NoError(t, err)
	assert.Len(t, records, 1)
	m.repo.AssertExpectations(t)
}

func TestNegotiationService_ListOpen_AdminSeesAll(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.repo.On("ListOpen", ctx, "").Return([]model.BidRequest{}, nil)

	_, err := svc.ListOpen(ctx, adminActor)

	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestNegotiationService_ListOpen_RequiresAuth(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ListOpen(context.Background(), model.Actor{})
	assert.ErrorIs(t, err, model.ErrUnauthorised)
}

func TestNegotiationService_ListPurchased_CustomerCannotPeek(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	_, err := svc.ListPurchased(ctx, customerActor, "bob@example.com")
	assert.ErrorIs(t, err, model.ErrForbidden)
	m.repo.AssertNotCalled(t, "ListPurchased", mock.Anything, mock.Anything)
}

func TestNegotiationService_ListPurchased_AdminFilters(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.repo.On("ListPurchased", ctx, "bob@example.com").Return([]model.BidRequest{}, nil)

	_, err := svc.ListPurchased(ctx, adminActor, "bob@example.com")

	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *model.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}
