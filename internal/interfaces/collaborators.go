package interfaces

import (
	"context"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/models"
)

// ConfigStore persists the terminal configuration record. Load returns
// config.ErrMissingConfig when nothing has been registered yet.
type ConfigStore interface {
	Load() (*config.Config, error)
	Save(cfg config.Config) error
	Clear() error
}

// EventChannel is the publish/subscribe transport carrying terminal events.
// Subscribe opens a fresh broker connection for the given config and streams
// results until ctx is cancelled; the synthetic Connected event is the first
// item on a healthy stream. Reconnect policy belongs to the caller.
type EventChannel interface {
	Subscribe(ctx context.Context, cfg config.Config) (<-chan models.EventResult, error)
	// Publish sends a frontend notification, best effort; failures are
	// logged and swallowed.
	Publish(ctx context.Context, cfg config.Config, notification models.FrontendNotification)
}

// PaymentGateway is the card-payment collaborator. Checkout delivers exactly
// one terminal result on the returned stream unless ctx is cancelled first.
type PaymentGateway interface {
	Checkout(ctx context.Context, attempt models.CheckoutAttempt) (<-chan models.CheckoutResult, error)
	Authorize(ctx context.Context, accessToken, locationID string) error
	Deauthorize(ctx context.Context) error
	IsAuthorized() bool
	AuthorizedLocation() string
}

// Backend is the registration system's HTTPS API.
type Backend interface {
	// SquareTransactionCompleted confirms a locally-reported charge.
	// Absence of a confirmed response must be treated as a rejection.
	SquareTransactionCompleted(ctx context.Context, cfg config.Config, tx models.CompletedTransaction) (bool, error)
	// RequestSquareToken triggers async token delivery over the event
	// channel; it has no direct return value.
	RequestSquareToken(ctx context.Context, cfg config.Config) error
	RegisterTerminal(ctx context.Context, endpoint, name, token string) (*config.Config, error)
}
