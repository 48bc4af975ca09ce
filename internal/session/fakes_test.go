package session

import (
	"context"
	"sync"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/models"
)

func mockConfig() config.Config {
	return config.Config{
		TerminalName:     "mockterminal",
		Endpoint:         "http://example.com",
		Token:            "MOCK-TOKEN",
		WebViewURL:       "http://example.com",
		MQTTHost:         "example.com",
		MQTTPort:         1883,
		MQTTUsername:     "MOCK-USERNAME",
		MQTTPassword:     "MOCK-PASSWORD",
		MQTTPrefix:       "MOCK-TOPIC",
		SquareLocationID: "MOCK-LOCATION",
	}
}

type fakeStore struct {
	mu      sync.Mutex
	cfg     *config.Config
	loadErr error
	saveErr error
	saves   []config.Config
	clears  int
}

func (f *fakeStore) Load() (*config.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.cfg == nil {
		return nil, config.ErrMissingConfig
	}
	cfg := *f.cfg
	return &cfg, nil
}

func (f *fakeStore) Save(cfg config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.cfg = &cfg
	f.saves = append(f.saves, cfg)
	return nil
}

func (f *fakeStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = nil
	f.clears++
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeStore) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

type fakeSub struct {
	ctx context.Context
	in  chan models.EventResult
}

type fakeChannel struct {
	mu           sync.Mutex
	subscribeErr error
	subs         []*fakeSub
	published    []models.FrontendNotification
}

func (f *fakeChannel) Subscribe(ctx context.Context, _ config.Config) (<-chan models.EventResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	sub := &fakeSub{ctx: ctx, in: make(chan models.EventResult, 16)}
	f.subs = append(f.subs, sub)

	out := make(chan models.EventResult, 16)
	out <- models.EventResult{Event: models.Connected{}}

	go func() {
		defer close(out)
		for {
			select {
			case result, ok := <-sub.in:
				if !ok {
					return
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (f *fakeChannel) Publish(_ context.Context, _ config.Config, notification models.FrontendNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, notification)
}

func (f *fakeChannel) emit(result models.EventResult) {
	f.mu.Lock()
	sub := f.subs[len(f.subs)-1]
	f.mu.Unlock()
	sub.in <- result
}

func (f *fakeChannel) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeChannel) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeChannel) notifications() []models.FrontendNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.FrontendNotification(nil), f.published...)
}

type fakeCheckout struct {
	ctx     context.Context
	attempt models.CheckoutAttempt
	in      chan models.CheckoutResult
}

type fakeGateway struct {
	mu          sync.Mutex
	authorized  bool
	location    string
	authErr     error
	checkoutErr error
	checkouts   []*fakeCheckout
}

func (f *fakeGateway) Checkout(ctx context.Context, attempt models.CheckoutAttempt) (<-chan models.CheckoutResult, error) {
	f.mu.Lock()
	if f.checkoutErr != nil {
		err := f.checkoutErr
		f.mu.Unlock()
		return nil, err
	}

	checkout := &fakeCheckout{ctx: ctx, attempt: attempt, in: make(chan models.CheckoutResult, 1)}
	f.checkouts = append(f.checkouts, checkout)
	f.mu.Unlock()

	out := make(chan models.CheckoutResult)
	go func() {
		defer close(out)
		for {
			select {
			case result, ok := <-checkout.in:
				if !ok {
					return
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (f *fakeGateway) Authorize(_ context.Context, accessToken, locationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authErr != nil {
		return f.authErr
	}
	f.authorized = true
	f.location = locationID
	return nil
}

func (f *fakeGateway) Deauthorize(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = false
	f.location = ""
	return nil
}

func (f *fakeGateway) IsAuthorized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized
}

func (f *fakeGateway) AuthorizedLocation() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

func (f *fakeGateway) checkoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checkouts)
}

func (f *fakeGateway) checkout(i int) *fakeCheckout {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkouts[i]
}

type fakeBackend struct {
	mu           sync.Mutex
	confirm      bool
	confirmErr   error
	transactions []models.CompletedTransaction
	tokenReqs    int
}

func (f *fakeBackend) SquareTransactionCompleted(_ context.Context, _ config.Config, tx models.CompletedTransaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, tx)
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	return f.confirm, nil
}

func (f *fakeBackend) RequestSquareToken(_ context.Context, _ config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenReqs++
	return nil
}

func (f *fakeBackend) RegisterTerminal(_ context.Context, _, name, _ string) (*config.Config, error) {
	cfg := mockConfig()
	cfg.TerminalName = name
	return &cfg, nil
}

func (f *fakeBackend) transactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transactions)
}

func (f *fakeBackend) transaction(i int) models.CompletedTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transactions[i]
}
