package service

import "errors"

// Error kinds. Every error returned by a service operation either wraps one
// of these or is an infrastructure failure.
var (
	ErrNotFound           = errors.New("not found")
	ErrInactive           = errors.New("inactive")
	ErrAlreadyCompleted   = errors.New("already completed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrOutOfStock         = errors.New("out of stock")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrInvalidState       = errors.New("invalid state")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrUserNotFound    = newKindError(ErrNotFound, "user not found")
	ErrMissionNotFound = newKindError(ErrNotFound, "mission not found")
	ErrRewardNotFound  = newKindError(ErrNotFound, "reward not found")
	ErrEventNotFound   = newKindError(ErrNotFound, "event not found")

	ErrMissionInactive = newKindError(ErrInactive, "mission is not active")
	ErrRewardInactive  = newKindError(ErrInactive, "reward is not active")

	ErrInvalidAmount     = newKindError(ErrInvalidState, "amount must be positive")
	ErrAmountTooLarge    = newKindError(ErrInvalidState, "amount exceeds the balance limit")
	ErrInvalidMultiplier = newKindError(ErrInvalidState, "multiplier must be at least 1")
	ErrInvalidDuration   = newKindError(ErrInvalidState, "duration must not be negative")
	ErrActionRequired    = newKindError(ErrInvalidState, "mission is completed by its action")
	ErrTargetRequired    = newKindError(ErrInvalidState, "reaction mission needs a target message")
	ErrTargetMismatch    = newKindError(ErrInvalidState, "reaction does not match the mission message")
	ErrInvalidMission    = newKindError(ErrInvalidState, "invalid mission definition")
	ErrMissionExists     = newKindError(ErrInvalidState, "mission already exists")
	ErrInvalidReward     = newKindError(ErrInvalidState, "invalid reward definition")
)

// Reason codes, one per error kind.
const (
	ReasonNotFound           = "not_found"
	ReasonInactive           = "inactive"
	ReasonAlreadyCompleted   = "already_completed"
	ReasonInsufficientPoints = "insufficient_points"
	ReasonOutOfStock         = "out_of_stock"
	ReasonRateLimited        = "rate_limited"
	ReasonInvalidState       = "invalid_state"
	ReasonInternal           = "internal"
)

// Reason maps an error to its stable category code. It returns "" for nil.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInactive):
		return ReasonInactive
	case errors.Is(err, ErrAlreadyCompleted):
		return ReasonAlreadyCompleted
	case errors.Is(err, ErrInsufficientPoints):
		return ReasonInsufficientPoints
	case errors.Is(err, ErrOutOfStock):
		return ReasonOutOfStock
	case errors.Is(err, ErrRateLimitExceeded):
		return ReasonRateLimited
	case errors.Is(err, ErrInvalidState):
		return ReasonInvalidState
	default:
		return ReasonInternal
	}
}
