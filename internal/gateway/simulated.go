package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/furthemore/registerd/internal/models"
)

// ErrNotAuthorized is returned when a checkout is attempted before the
// gateway has been authorized with credentials.
var ErrNotAuthorized = errors.New("payment gateway is not authorized")

// Simulated is a PaymentGateway for development and testing. It resolves
// checkouts after a short delay; the attempt note selects the outcome so
// scripted runs can exercise every path.
type Simulated struct {
	logger   *zap.Logger
	currency string
	delay    time.Duration

	mu          sync.Mutex
	accessToken string
	locationID  string
}

func NewSimulated(logger *zap.Logger, currency string) *Simulated {
	return &Simulated{logger: logger, currency: currency, delay: 250 * time.Millisecond}
}

func (s *Simulated) Authorize(_ context.Context, accessToken, locationID string) error {
	if accessToken == "" {
		return fmt.Errorf("authorize: empty access token")
	}

	s.mu.Lock()
	s.accessToken = accessToken
	s.locationID = locationID
	s.mu.Unlock()

	s.logger.Info("Simulated gateway authorized", zap.String("location", locationID))
	return nil
}

func (s *Simulated) Deauthorize(_ context.Context) error {
	s.mu.Lock()
	s.accessToken = ""
	s.locationID = ""
	s.mu.Unlock()
	return nil
}

func (s *Simulated) IsAuthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

func (s *Simulated) AuthorizedLocation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locationID
}

func (s *Simulated) Checkout(ctx context.Context, attempt models.CheckoutAttempt) (<-chan models.CheckoutResult, error) {
	if !s.IsAuthorized() {
		return nil, ErrNotAuthorized
	}

	out := make(chan models.CheckoutResult, 1)

	go func() {
		defer close(out)

		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return
		}

		var result models.CheckoutResult
		switch {
		case strings.Contains(attempt.Note, "SIM-CANCEL"):
			result = models.CheckoutResult{Outcome: models.CheckoutCancelled}
		case strings.Contains(attempt.Note, "SIM-DECLINE"):
			result = models.CheckoutResult{
				Outcome: models.CheckoutFailed,
				Err:     fmt.Errorf("card declined"),
			}
		default:
			result = models.CheckoutResult{
				Outcome:     models.CheckoutSucceeded,
				PaymentID:   "sim-" + uuid.NewString(),
				ReferenceID: attempt.Reference,
			}
		}

		s.logger.Info("Simulated checkout resolved",
			zap.String("attempt", attempt.PaymentAttemptID),
			zap.Int64("amount", attempt.Amount),
			zap.String("currency", s.currency),
			zap.String("outcome", result.Outcome.String()),
		)

		select {
		case out <- result:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
