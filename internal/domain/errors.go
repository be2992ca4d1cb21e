package domain

import "errors"

// Negotiation errors
var (
	ErrNoPendingRequest       = errors.New("no pending join request")
	ErrRequestAlreadyResolved = errors.New("join request already resolved")
	ErrDecisionInFlight       = errors.New("a decision for this request is already in flight")
)

// Connection errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrNoIdentity   = errors.New("no viewer identity available")
)

// Event errors
var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event type")
)
