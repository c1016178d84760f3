package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the negotiation lifecycle state of a bid request.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusCounterOffer Status = "counter_offer"
)

// FinalStatus is the real-world auction outcome, distinct from the
// negotiation status. It is only meaningful once a request is approved.
type FinalStatus string

const (
	FinalStatusNone             FinalStatus = ""
	FinalStatusWon              FinalStatus = "won"
	FinalStatusLost             FinalStatus = "lost"
	FinalStatusEndedCheckNeeded FinalStatus = "ended_check_needed"
)

// Language selects the customer's notification locale.
type Language string

const (
	LanguageSpanish    Language = "es"
	LanguagePortuguese Language = "pt"
)

// Valid reports whether l is a supported locale.
func (l Language) Valid() bool {
	return l == LanguageSpanish || l == LanguagePortuguese
}

// RejectedBy records which party rejected a counter-offer chain.
type RejectedBy string

const (
	RejectedByAdmin    RejectedBy = "admin"
	RejectedByCustomer RejectedBy = "customer"
)

// NegotiationState is the explicit state of a bid request, derived from the
// persisted fields. Transition legality is decided against this state rather
// than against ad-hoc field presence checks.
type NegotiationState string

const (
	StatePending           NegotiationState = "pending"
	StateApproved          NegotiationState = "approved"
	StateRejected          NegotiationState = "rejected"
	StateCounterByAdmin    NegotiationState = "counter_by_admin"
	StateCounterByCustomer NegotiationState = "counter_by_customer"
	StateWon               NegotiationState = "won"
	StateLost              NegotiationState = "lost"
	StatePendingDeletion   NegotiationState = "pending_deletion"
)

// BidRequest is a customer's maximum-bid request against an auction listing.
type BidRequest struct {
	ID uuid.UUID `json:"id" db:"id"`

	// Snapshot of the listing at request time.
	ProductID      string     `json:"productId" db:"product_id"`
	ProductTitle   string     `json:"productTitle" db:"product_title"`
	ProductURL     string     `json:"productUrl" db:"product_url"`
	ProductImage   string     `json:"productImage" db:"product_image"`
	ProductPrice   int64      `json:"productPrice" db:"product_price"` // JPY
	ProductEndTime *time.Time `json:"productEndTime,omitempty" db:"product_end_time"`

	MaxBid        float64  `json:"maxBid" db:"max_bid"` // USD
	CustomerName  string   `json:"customerName" db:"customer_name"`
	CustomerEmail string   `json:"customerEmail" db:"customer_email"`
	Language      Language `json:"language" db:"language"`

	Status       Status     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	RejectReason *string    `json:"rejectReason,omitempty" db:"reject_reason"`

	CounterOffer             *float64    `json:"counterOffer,omitempty" db:"counter_offer"` // USD, admin's proposal
	ShippingCostJpy          *int64      `json:"shippingCostJpy,omitempty" db:"shipping_cost_jpy"`
	CustomerCounterOffer     *float64    `json:"customerCounterOffer,omitempty" db:"customer_counter_offer"` // USD, customer's proposal
	CustomerCounterOfferUsed bool        `json:"customerCounterOfferUsed" db:"customer_counter_offer_used"`
	CounterRejectedBy        *RejectedBy `json:"counterRejectedBy,omitempty" db:"counter_rejected_by"`

	FinalStatus       FinalStatus `json:"finalStatus,omitempty" db:"final_status"`
	FinalPrice        *float64    `json:"finalPrice,omitempty" db:"final_price"` // USD
	CustomerConfirmed bool        `json:"customerConfirmed" db:"customer_confirmed"`
	CustomerMessage   *string     `json:"customerMessage,omitempty" db:"customer_message"`
	AdminNeedsConfirm bool        `json:"adminNeedsConfirm" db:"admin_needs_confirm"`
	Paid              bool        `json:"paid" db:"paid"`

	// Version is the optimistic concurrency token; every update checks and
	// bumps it so concurrent admin actions cannot silently overwrite each other.
	Version int64 `json:"-" db:"version"`
}

// State derives the explicit negotiation state from the persisted fields.
// A record flagged for manual deletion is terminal regardless of status.
func (b *BidRequest) State() NegotiationState {
	if b.AdminNeedsConfirm {
		return StatePendingDeletion
	}
	switch b.Status {
	case StatusPending:
		return StatePending
	case StatusRejected:
		return StateRejected
	case StatusCounterOffer:
		if b.CustomerCounterOffer != nil {
			return StateCounterByCustomer
		}
		return StateCounterByAdmin
	case StatusApproved:
		switch b.FinalStatus {
		case FinalStatusWon:
			return StateWon
		case FinalStatusLost:
			return StateLost
		default:
			return StateApproved
		}
	}
	return StatePending
}

// Terminal reports whether the record awaits only a confirmation that leads
// to deletion: a rejected negotiation, a lost auction, or a rejected
// counter-offer chain pending manual removal.
func (b *BidRequest) Terminal() bool {
	switch b.State() {
	case StateRejected, StateLost, StatePendingDeletion:
		return true
	}
	return false
}
