package domain

import "time"

// RequestState represents the negotiation state for the viewer's join-request slot
type RequestState string

const (
	RequestStateIdle       RequestState = "idle"
	RequestStatePending    RequestState = "pending"
	RequestStateAccepted   RequestState = "accepted"
	RequestStateRejected   RequestState = "rejected"
	RequestStateTimedOut   RequestState = "timed_out"
	RequestStateSuperseded RequestState = "superseded"
)

// JoinRequest is an inbound request from another player to take the open
// slot in one of the viewer's games. ReceivedAt anchors the countdown so
// a request restored after a remount resumes with the correct remaining
// time instead of a fresh window.
type JoinRequest struct {
	GameID        string    `json:"gameId"`
	RequesterID   string    `json:"requesterId"`
	RequesterName string    `json:"requesterName,omitempty"`
	ReceivedAt    time.Time `json:"receivedAt"`
}
