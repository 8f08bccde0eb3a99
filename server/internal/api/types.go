package api

import (
	"github.com/pipewatch/pipewatch/pkg/types"
)

// ProjectStatus is the latest cycle result of one project.
type ProjectStatus struct {
	Project string `json:"project"`
	// Statuses is the cycle result in delivery order: status, then notification.
	Statuses []types.PipelineStatus `json:"statuses"`
	Builds   int                    `json:"builds"`
	Deploys  int                    `json:"deploys"`
	// Error is set when the cycle's fetch failed; Statuses is then empty.
	Error     string `json:"error,omitempty"`
	PolledAt  string `json:"polled_at"`
	UpdatedAt string `json:"updated_at"`
}

// StatusSnapshot is the payload for GET /{root}/status and the WebSocket stream.
type StatusSnapshot struct {
	Projects    []ProjectStatus `json:"projects"`
	GeneratedAt string          `json:"generated_at"`
}

// subscribeRequest is the body of POST /{root}/subscription.
type subscribeRequest struct {
	CallbackURL string `json:"callbackUrl"`
	Type        string `json:"type"`
}

// unsubscribeRequest is the body of DELETE /{root}/subscription.
type unsubscribeRequest struct {
	ID string `json:"id"`
}

// CountResponse is the payload for GET /{root}/subscription/count.
type CountResponse struct {
	Subscribed int `json:"subscribed"`
}

type errorResponse struct {
	Error string `json:"error"`
}
