package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/interfaces"
	"github.com/furthemore/registerd/internal/models"
	"github.com/furthemore/registerd/internal/telemetry"
)

// How many recently seen payment attempt ids are kept for deduplication.
const seenAttemptLimit = 64

// Machine is the authoritative state machine for one terminal session. All
// mutation is serialized under a single lock: every event is processed to
// completion before the next, and async collaborator results re-enter through
// generation-checked callbacks so a superseded subscription or checkout can
// never write into newer state.
type Machine struct {
	logger  *zap.Logger
	store   interfaces.ConfigStore
	channel interfaces.EventChannel
	gateway interfaces.PaymentGateway
	backend interfaces.Backend

	now func() time.Time

	mu    sync.Mutex
	state sessionState

	ctx context.Context

	subGen    uint64
	subCancel context.CancelFunc

	checkoutGen    uint64
	checkoutCancel context.CancelFunc

	seenAttempts []string
}

func NewMachine(
	logger *zap.Logger,
	store interfaces.ConfigStore,
	channel interfaces.EventChannel,
	gateway interfaces.PaymentGateway,
	backend interfaces.Backend,
) *Machine {
	return &Machine{
		logger:  logger,
		store:   store,
		channel: channel,
		gateway: gateway,
		backend: backend,
		now:     time.Now,
		ctx:     context.Background(),
		state:   newSessionState(),
	}
}

// Snapshot returns an immutable copy of the current session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.snapshot()
}

// Start loads the persisted config and, when a complete record exists,
// connects to the event channel. Missing config is not an error; the terminal
// simply stays in setup until registered.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ctx = ctx
	m.state.gatewayReady = m.gateway.IsAuthorized()

	cfg, err := m.store.Load()
	m.state.needsConfigLoad = false

	switch {
	case errors.Is(err, config.ErrMissingConfig):
		return
	case err != nil:
		m.setAlertLocked("Config Load Error", err.Error())
		return
	}

	m.state.config = cfg
	if cfg.IsComplete() {
		m.connectLocked()
	}
}

// Connect opens a new event channel subscription, cancelling any prior one
// first.
func (m *Machine) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked()
}

// Disconnect cancels the active subscription, if any, and re-enables local
// config editing. Safe to call when already disconnected.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

// HandleEvent dispatches a single terminal event into the session.
func (m *Machine) HandleEvent(event models.TerminalEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handleEventLocked(event)
}

// OnPhaseChange feeds application lifecycle transitions into the machine.
// Backgrounding while connected tears the subscription down and remembers the
// intent to resume; the next active transition reconnects.
func (m *Machine) OnPhaseChange(phase Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch phase {
	case PhaseActive:
		if m.state.resumeOnActive || m.state.connectionState != Disconnected {
			m.state.resumeOnActive = false
			m.connectLocked()
		}
	case PhaseBackground:
		if m.state.connectionState != Disconnected {
			m.disconnectLocked()
			m.state.resumeOnActive = true
		}
	}
}

// OnConfigRegistered installs a freshly registered config. Any live
// subscription is torn down first so nothing outlives the credential
// rotation, then the new config is persisted and a connection started.
func (m *Machine) OnConfigRegistered(cfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked()

	if err := m.store.Save(cfg); err != nil {
		m.setAlertLocked("Config Error", err.Error())
		return
	}

	m.state.config = &cfg
	m.setAlertLocked("Registration Complete", "Successfully registered "+cfg.TerminalName)
	m.connectLocked()
}

// OnConfigCleared removes the persisted config, deauthorizes the gateway and
// disconnects.
func (m *Machine) OnConfigCleared() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.gateway.Deauthorize(m.ctx); err != nil {
		m.logger.Warn("Could not deauthorize gateway", zap.Error(err))
	}
	if err := m.store.Clear(); err != nil {
		m.setAlertLocked("Config Error", err.Error())
		return
	}

	m.state.config = nil
	m.state.gatewayReady = false
	m.state.mode = ModeSetup
	m.disconnectLocked()
}

// DismissAlert clears the session alert.
func (m *Machine) DismissAlert() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.alert = nil
}

// connection lifecycle

func (m *Machine) connectLocked() {
	cfg := m.state.config
	if cfg == nil {
		return
	}

	m.cancelSubscriptionLocked()

	m.setConnectionStateLocked(Connecting)

	m.subGen++
	gen := m.subGen

	subCtx, cancel := context.WithCancel(m.ctx)
	m.subCancel = cancel

	go m.runSubscription(subCtx, gen, *cfg)
}

func (m *Machine) disconnectLocked() {
	m.cancelSubscriptionLocked()
	m.setConnectionStateLocked(Disconnected)
	m.state.canEditConfig = true
}

func (m *Machine) cancelSubscriptionLocked() {
	if m.subCancel != nil {
		m.subCancel()
		m.subCancel = nil
	}
	// Any in-flight results from the old subscription fail the generation
	// check and are dropped.
	m.subGen++
}

func (m *Machine) runSubscription(ctx context.Context, gen uint64, cfg config.Config) {
	stream, err := m.channel.Subscribe(ctx, cfg)
	if err != nil {
		m.onSubscribeFailed(gen, err)
		return
	}

	for result := range stream {
		m.onSubscriptionResult(gen, result)
	}
}

func (m *Machine) onSubscribeFailed(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.subGen {
		return
	}

	m.logger.Warn("Event subscription failed", zap.Error(err))
	m.setConnectionStateLocked(Disconnected)
	m.setAlertLocked("Error", err.Error())
}

func (m *Machine) onSubscriptionResult(gen uint64, result models.EventResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.subGen {
		return
	}

	if result.Err != nil {
		if errors.Is(result.Err, models.ErrUnknownEvent) {
			// The one swallow-and-continue failure: report and drop,
			// leaving mode and connection state untouched.
			telemetry.EventDecodeFailures.Inc()
			m.setAlertLocked("Unknown Event", result.Err.Error())
			return
		}

		m.setAlertLocked("Error", result.Err.Error())
		m.disconnectLocked()
		return
	}

	m.handleEventLocked(result.Event)
}

// event dispatch

func (m *Machine) handleEventLocked(event models.TerminalEvent) {
	telemetry.EventsReceived.WithLabelValues(models.EventType(event)).Inc()

	t := m.now()
	m.state.lastEventAt = &t
	m.setConnectionStateLocked(Connected)
	m.state.canEditConfig = false

	switch e := event.(type) {
	case models.Connected:
		// Connection liveness only, no mode change.

	case models.StateOpen:
		if m.state.config != nil && m.state.gatewayReady {
			m.state.mode = ModeAcceptingPayments
			m.state.cart = models.EmptyCart()
			m.state.currentTransactionReference = ""
			m.state.presentingPayment = false
			m.cancelCheckoutLocked()
		} else {
			m.setAlertLocked("Opening Failed", "Terminal has not been fully configured.")
		}

	case models.StateClose:
		m.state.mode = ModeClosed

	case models.ClearCart:
		m.state.cart = models.EmptyCart()
		m.state.currentTransactionReference = ""
		m.state.paymentAlert = nil

	case models.CartUpdate:
		m.state.cart = e.Cart
		m.state.paymentAlert = nil

	case models.ProcessPayment:
		m.processPaymentLocked(e)

	case models.UpdateToken:
		m.updateTokenLocked(e)

	case models.UpdateConfig:
		m.updateConfigLocked(e.Config)

	default:
		m.logger.Warn("Unhandled terminal event", zap.String("type", models.EventType(event)))
	}
}

func (m *Machine) processPaymentLocked(e models.ProcessPayment) {
	attemptID := e.PaymentAttemptID
	if attemptID == "" {
		// Legacy callers omit the idempotency key.
		attemptID = uuid.NewString()
	} else if m.sawAttemptLocked(attemptID) {
		m.logger.Info("Ignoring duplicate payment attempt", zap.String("attempt", attemptID))
		telemetry.Checkouts.WithLabelValues("duplicate").Inc()
		return
	}
	m.recordAttemptLocked(attemptID)

	attempt := models.CheckoutAttempt{
		PaymentAttemptID: attemptID,
		OrderID:          e.OrderID,
		Amount:           e.Total,
		Note:             e.Note,
		Reference:        e.Reference,
	}

	m.state.currentTransactionReference = e.Reference
	m.state.presentingPayment = true
	m.notifyLocked(models.NotifyPaymentOpened)

	m.cancelCheckoutLocked()
	m.checkoutGen++
	gen := m.checkoutGen

	checkoutCtx, cancel := context.WithCancel(m.ctx)
	m.checkoutCancel = cancel

	go m.runCheckout(checkoutCtx, gen, attempt)
}

func (m *Machine) runCheckout(ctx context.Context, gen uint64, attempt models.CheckoutAttempt) {
	stream, err := m.gateway.Checkout(ctx, attempt)
	if err != nil {
		m.onCheckoutFailedToStart(gen, err)
		return
	}

	for result := range stream {
		m.onCheckoutResult(gen, result)
	}
}

func (m *Machine) onCheckoutFailedToStart(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.checkoutGen {
		return
	}

	m.setAlertLocked("Error", "Could not create checkout: "+err.Error())
	m.state.presentingPayment = false
}

func (m *Machine) onCheckoutResult(gen uint64, result models.CheckoutResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.checkoutGen {
		telemetry.Checkouts.WithLabelValues("superseded").Inc()
		return
	}

	telemetry.Checkouts.WithLabelValues(result.Outcome.String()).Inc()

	switch result.Outcome {
	case models.CheckoutCancelled:
		m.state.presentingPayment = false
		m.notifyLocked(models.NotifyPaymentCancelled)

	case models.CheckoutFailed:
		m.state.presentingPayment = false
		m.state.paymentAlert = &Alert{Title: "Error", Message: result.Err.Error()}
		m.notifyLocked(models.NotifyPaymentFailed)

	case models.CheckoutSucceeded:
		m.state.presentingPayment = false
		m.notifyLocked(models.NotifyPaymentCompleted)

		cfg := m.state.config
		if cfg == nil {
			m.state.paymentAlert = &Alert{Title: "Error", Message: "Payment was not successful."}
			return
		}

		tx := models.CompletedTransaction{
			Reference: m.state.currentTransactionReference,
			PaymentID: result.PaymentID,
		}
		go m.reconcile(gen, *cfg, tx)
	}
}

// reconcile asks the backend to confirm a completed charge. The sale is not
// final until this returns; a network failure counts as a rejection.
func (m *Machine) reconcile(gen uint64, cfg config.Config, tx models.CompletedTransaction) {
	confirmed, err := m.backend.SquareTransactionCompleted(m.ctx, cfg, tx)
	if err != nil {
		m.logger.Error("Checkout reconciliation failed",
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
		telemetry.Reconciliations.WithLabelValues("error").Inc()
		confirmed = false
	} else if confirmed {
		telemetry.Reconciliations.WithLabelValues("confirmed").Inc()
	} else {
		telemetry.Reconciliations.WithLabelValues("rejected").Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.checkoutGen {
		return
	}

	if confirmed {
		m.state.cart = models.EmptyCart()
		m.state.currentTransactionReference = ""
		m.state.paymentAlert = &Alert{Title: "Thanks!", Message: "Payment successful."}
	} else {
		m.state.paymentAlert = &Alert{Title: "Error", Message: "Payment was not successful."}
	}
}

func (m *Machine) updateTokenLocked(e models.UpdateToken) {
	cfg := m.state.config
	if cfg == nil {
		m.setAlertLocked("Error", "Must have configuration before authorizing payments")
		return
	}

	m.state.configuringGateway = true
	current := *cfg

	go func() {
		err := m.gateway.Authorize(m.ctx, e.AccessToken, current.SquareLocationID)

		m.mu.Lock()
		defer m.mu.Unlock()

		m.state.configuringGateway = false
		if err != nil {
			m.setAlertLocked("Error", err.Error())
			return
		}

		m.state.gatewayReady = true
		if err := m.store.Save(current); err != nil {
			m.setAlertLocked("Config Error", err.Error())
		}
	}()
}

func (m *Machine) updateConfigLocked(cfg config.Config) {
	if err := m.store.Save(cfg); err != nil {
		m.setAlertLocked("Config Error", err.Error())
		return
	}

	previous := m.state.config
	m.state.config = &cfg

	if previous != nil && previous.SquareApplicationID != cfg.SquareApplicationID {
		m.setAlertLocked("Updated Config", "Payment application ID changed, you must restart the terminal.")
	}

	// The broker identity may have rotated with the config; resubscribe so
	// no stale subscription outlives it.
	m.connectLocked()
}

// helpers

func (m *Machine) setConnectionStateLocked(state ConnectionState) {
	m.state.connectionState = state
	telemetry.ConnectionState.Set(float64(state))
}

func (m *Machine) setAlertLocked(title, message string) {
	m.state.alert = &Alert{Title: title, Message: message}
	m.logger.Warn("Session alert",
		zap.String("title", title),
		zap.String("message", message),
	)
}

func (m *Machine) notifyLocked(notification models.FrontendNotification) {
	cfg := m.state.config
	if cfg == nil {
		return
	}
	go m.channel.Publish(m.ctx, *cfg, notification)
}

func (m *Machine) cancelCheckoutLocked() {
	if m.checkoutCancel != nil {
		m.checkoutCancel()
		m.checkoutCancel = nil
	}
	m.checkoutGen++
}

func (m *Machine) sawAttemptLocked(id string) bool {
	for _, seen := range m.seenAttempts {
		if seen == id {
			return true
		}
	}
	return false
}

func (m *Machine) recordAttemptLocked(id string) {
	m.seenAttempts = append(m.seenAttempts, id)
	if len(m.seenAttempts) > seenAttemptLimit {
		m.seenAttempts = m.seenAttempts[len(m.seenAttempts)-seenAttemptLimit:]
	}
}
