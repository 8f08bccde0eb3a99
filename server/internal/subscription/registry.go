package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrDuplicateURL is returned when the callback URL is already subscribed.
	ErrDuplicateURL = errors.New("subscription: callback url already registered")
	// ErrNotFound is returned when no subscriber has the given id.
	ErrNotFound = errors.New("subscription: not found")
	// ErrInvalid wraps every validation failure of a new subscriber.
	ErrInvalid = errors.New("subscription: invalid subscriber")
)

// Kind selects the payload format delivered to a subscriber.
type Kind string

const (
	KindHTTP  Kind = "http"
	KindSlack Kind = "slack"
	KindTeams Kind = "teams"
)

// ParseKind validates s. An empty string selects KindHTTP.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "":
		return KindHTTP, nil
	case KindHTTP, KindSlack, KindTeams:
		return k, nil
	default:
		return "", fmt.Errorf("subscription: unknown type %q: want http|slack|teams", s)
	}
}

// Subscriber is one registered callback.
type Subscriber struct {
	ID          string    `json:"id"`
	CallbackURL string    `json:"callbackUrl"`
	Kind        Kind      `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Registry stores subscribers. Implementations are safe for concurrent use.
type Registry interface {
	// Subscribe registers s and returns its generated id. s.ID is ignored.
	Subscribe(ctx context.Context, s Subscriber) (string, error)
	// Unsubscribe removes the subscriber with id.
	Unsubscribe(ctx context.Context, id string) error
	// List returns all subscribers ordered by creation time.
	List(ctx context.Context) ([]Subscriber, error)
	// Count returns the number of subscribers.
	Count(ctx context.Context) (int, error)
}

// validate checks and normalises s before it is stored.
func validate(s *Subscriber) error {
	if s.CallbackURL == "" {
		return fmt.Errorf("%w: callbackUrl is required", ErrInvalid)
	}
	u, err := url.Parse(s.CallbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: callbackUrl %q is not an absolute http(s) url", ErrInvalid, s.CallbackURL)
	}
	kind, err := ParseKind(string(s.Kind))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.Kind = kind
	return nil
}
