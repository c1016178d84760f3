package auth

import (
	"context"

	"bid-broker/internal/model"
)

type contextKey struct{}

// WithActor attaches the authenticated actor to the request context.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom extracts the authenticated actor from the context.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(model.Actor)
	return actor, ok
}

// Policy is the single authorization decision point consulted by every
// negotiation engine operation. All checks fail closed: an empty identity is
// unauthorised, a valid identity without rights over the target is forbidden.
type Policy struct{}

// RequireAuthenticated rejects requests without a valid actor identity.
func (Policy) RequireAuthenticated(actor model.Actor) error {
	if actor.Email == "" {
		return model.ErrUnauthorised
	}
	return nil
}

// RequireAdmin rejects any non-admin actor.
func (p Policy) RequireAdmin(actor model.Actor) error {
	if err := p.RequireAuthenticated(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return model.ErrForbidden
	}
	return nil
}

// RequireRecordCustomer admits only the customer the record belongs to.
func (p Policy) RequireRecordCustomer(actor model.Actor, rec *model.BidRequest) error {
	if err := p.RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.IsAdmin() || actor.Email != rec.CustomerEmail {
		return model.ErrForbidden
	}
	return nil
}

// RequireRecordCustomerOrAdmin admits the owning customer or any admin.
func (p Policy) RequireRecordCustomerOrAdmin(actor model.Actor, rec *model.BidRequest) error {
	if err := p.RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.IsAdmin() || actor.Email == rec.CustomerEmail {
		return nil
	}
	return model.ErrForbidden
}

// CreateTargetEmail resolves which customer a new bid request is created for.
// Only admins may create a request on another customer's behalf; everyone
// else always gets their own identity regardless of what they submitted.
func (p Policy) CreateTargetEmail(actor model.Actor, requested string) (string, error) {
	if err := p.RequireAuthenticated(actor); err != nil {
		return "", err
	}
	if actor.IsAdmin() && requested != "" {
		return requested, nil
	}
	if !actor.IsAdmin() && requested != "" && requested != actor.Email {
		return "", model.ErrForbidden
	}
	return actor.Email, nil
}
