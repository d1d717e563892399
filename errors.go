package heartbeat

import "github.com/arloliu/heartbeat/types"

// Sentinel errors returned by the Coordinator.
//
// They are re-exported from the types package so callers only need to
// import the root package to match them with errors.Is.
var (
	ErrInvalidConfig          = types.ErrInvalidConfig
	ErrAlreadyStarted         = types.ErrAlreadyStarted
	ErrNotStarted             = types.ErrNotStarted
	ErrStopped                = types.ErrStopped
	ErrNotFound               = types.ErrNotFound
	ErrAlreadyRegistered      = types.ErrAlreadyRegistered
	ErrInvalidEntityID        = types.ErrInvalidEntityID
	ErrInvalidState           = types.ErrInvalidState
	ErrSubscriberFailure      = types.ErrSubscriberFailure
	ErrSubscriberBackpressure = types.ErrSubscriberBackpressure
	ErrSubscriptionNotFound   = types.ErrSubscriptionNotFound
)
