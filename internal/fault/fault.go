package fault

import (
	"errors"
	"fmt"
)

// Failure categories. Concrete failures wrap one of these sentinels so
// callers can classify with errors.Is and extract detail with errors.As.
var (
	ErrValidation         = errors.New("validation failed")
	ErrOutOfStock         = errors.New("out of stock")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("concurrent modification")
	ErrExternalDependency = errors.New("external dependency failure")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Validationf builds a validation failure with a caller-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// OutOfStock reports a stock check failure. Remaining is the quantity the
// caller may still request (available minus what the cart already holds);
// InCart is the quantity already committed in the cart.
type OutOfStock struct {
	ProductID string
	Requested int
	Remaining int
	InCart    int
}

func (e *OutOfStock) Error() string {
	return fmt.Sprintf("out of stock: product %s: requested %d, %d remaining (%d already in cart)",
		e.ProductID, e.Requested, e.Remaining, e.InCart)
}

func (e *OutOfStock) Unwrap() error { return ErrOutOfStock }

// IllegalTransition reports a role/state mismatch on a state machine.
type IllegalTransition struct {
	Entity string
	From   string
	To     string
	Actor  string
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition: %s cannot move %s from %s to %s",
		e.Actor, e.Entity, e.From, e.To)
}

func (e *IllegalTransition) Unwrap() error { return ErrIllegalTransition }

// NotFound reports a missing resource.
type NotFound struct {
	Resource string
	ID       string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFound) Unwrap() error { return ErrNotFound }

// Conflictf builds a conflict failure for the loser of a concurrent write.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// External reports a failed or timed-out collaborator call.
type External struct {
	Dependency string
	Err        error
}

func (e *External) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Dependency, e.Err)
}

func (e *External) Unwrap() error { return ErrExternalDependency }

// Unauthorizedf builds an authorization failure.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}
