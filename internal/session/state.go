package session

import (
	"time"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/models"
)

// ConnectionState tracks the event channel lifecycle. It is owned exclusively
// by the session machine and only changes through the connect/disconnect
// protocol.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Mode is what the terminal is currently doing, derived from the latest
// state event and local gateway readiness.
type Mode int

const (
	ModeSetup Mode = iota
	ModeClosed
	ModeAcceptingPayments
)

func (m Mode) String() string {
	switch m {
	case ModeSetup:
		return "setup"
	case ModeClosed:
		return "closed"
	case ModeAcceptingPayments:
		return "acceptingPayments"
	default:
		return "unknown"
	}
}

// Phase is the application lifecycle signal fed into the machine; the daemon
// maps suspend/resume to these.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseBackground
)

// Alert is a user-visible (title, message) pair. Collaborator failures become
// alerts; none of them crash the session.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Snapshot is an immutable copy of the session state for external observers.
type Snapshot struct {
	NeedsConfigLoad bool            `json:"needsConfigLoad"`
	ConnectionState ConnectionState `json:"connectionState"`
	Mode            Mode            `json:"mode"`
	LastEventAt     *time.Time      `json:"lastEventAt"`

	GatewayReady       bool `json:"gatewayReady"`
	ConfiguringGateway bool `json:"configuringGateway"`
	PresentingPayment  bool `json:"presentingPayment"`
	CanEditConfig      bool `json:"canEditConfig"`

	Cart                        models.Cart `json:"cart"`
	CurrentTransactionReference string      `json:"currentTransactionReference"`

	Alert        *Alert `json:"alert,omitempty"`
	PaymentAlert *Alert `json:"paymentAlert,omitempty"`

	Config *config.Config `json:"config,omitempty"`
}

// sessionState is the single mutable state record, reachable only under the
// machine's lock.
type sessionState struct {
	needsConfigLoad bool
	connectionState ConnectionState
	mode            Mode
	lastEventAt     *time.Time

	gatewayReady       bool
	configuringGateway bool
	presentingPayment  bool
	canEditConfig      bool
	resumeOnActive     bool

	cart                        models.Cart
	currentTransactionReference string

	alert        *Alert
	paymentAlert *Alert

	config *config.Config
}

func newSessionState() sessionState {
	return sessionState{
		needsConfigLoad: true,
		connectionState: Disconnected,
		mode:            ModeSetup,
		canEditConfig:   true,
		cart:            models.EmptyCart(),
	}
}

func (s *sessionState) snapshot() Snapshot {
	snap := Snapshot{
		NeedsConfigLoad:             s.needsConfigLoad,
		ConnectionState:             s.connectionState,
		Mode:                        s.mode,
		GatewayReady:                s.gatewayReady,
		ConfiguringGateway:          s.configuringGateway,
		PresentingPayment:           s.presentingPayment,
		CanEditConfig:               s.canEditConfig,
		CurrentTransactionReference: s.currentTransactionReference,
	}

	snap.Cart = s.cart
	snap.Cart.Badges = append([]models.Badge(nil), s.cart.Badges...)

	if s.lastEventAt != nil {
		t := *s.lastEventAt
		snap.LastEventAt = &t
	}
	if s.alert != nil {
		a := *s.alert
		snap.Alert = &a
	}
	if s.paymentAlert != nil {
		a := *s.paymentAlert
		snap.PaymentAlert = &a
	}
	if s.config != nil {
		c := *s.config
		snap.Config = &c
	}

	return snap
}
