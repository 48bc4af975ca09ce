package models

import (
	"encoding/json"
	"fmt"

	"github.com/furthemore/registerd/internal/config"
)

// ErrUnknownEvent marks payloads whose discriminant does not match any known
// terminal event. Decode failures are surfaced to the operator but never
// affect session state.
var ErrUnknownEvent = fmt.Errorf("unknown terminal event")

// TerminalEvent is the closed set of commands a terminal can receive over the
// event channel. Connected is synthetic and never decoded from the wire.
type TerminalEvent interface {
	eventType() string
}

type Connected struct{}

type StateOpen struct{}

type StateClose struct{}

type ClearCart struct{}

type CartUpdate struct {
	Cart Cart
}

type ProcessPayment struct {
	PaymentAttemptID string
	OrderID          *string
	Total            int64
	Note             string
	Reference        string
}

type UpdateToken struct {
	AccessToken  string
	RefreshToken string
}

type UpdateConfig struct {
	Config config.Config
}

func (Connected) eventType() string      { return "connected" }
func (StateOpen) eventType() string      { return "state" }
func (StateClose) eventType() string     { return "state" }
func (ClearCart) eventType() string      { return "clearCart" }
func (CartUpdate) eventType() string     { return "updateCart" }
func (ProcessPayment) eventType() string { return "processPayment" }
func (UpdateToken) eventType() string    { return "updateToken" }
func (UpdateConfig) eventType() string   { return "updateConfig" }

// EventType names an event for logging and metrics.
func EventType(event TerminalEvent) string {
	if event == nil {
		return "nil"
	}
	return event.eventType()
}

type eventEnvelope struct {
	Type string `json:"type"`

	// state
	Value string `json:"value"`

	// updateCart
	Cart *Cart `json:"cart"`

	// processPayment, amounts in integer minor units
	PaymentAttemptID string  `json:"paymentAttemptId"`
	OrderID          *string `json:"orderId"`
	Total            int64   `json:"total"`
	Note             string  `json:"note"`
	Reference        string  `json:"reference"`

	// updateToken
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	// updateConfig
	Config *config.Config `json:"config"`
}

// DecodeEvent decodes a wire payload into exactly one event variant. Unknown
// discriminants, including unknown state values, are an error rather than a
// default case so future event kinds are never misinterpreted.
func DecodeEvent(data []byte) (TerminalEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
	}

	switch env.Type {
	case "state":
		switch env.Value {
		case "open", "ready":
			// The backend sends "ready" for a terminal it considers
			// provisioned; it opens the terminal the same as "open".
			return StateOpen{}, nil
		case "close":
			return StateClose{}, nil
		default:
			return nil, fmt.Errorf("%w: state value %q", ErrUnknownEvent, env.Value)
		}
	case "clearCart":
		return ClearCart{}, nil
	case "updateCart":
		if env.Cart == nil {
			return nil, fmt.Errorf("%w: updateCart without cart", ErrUnknownEvent)
		}
		return CartUpdate{Cart: *env.Cart}, nil
	case "processPayment":
		if env.Total < 0 {
			return nil, fmt.Errorf("%w: negative total %d", ErrUnknownEvent, env.Total)
		}
		return ProcessPayment{
			PaymentAttemptID: env.PaymentAttemptID,
			OrderID:          env.OrderID,
			Total:            env.Total,
			Note:             env.Note,
			Reference:        env.Reference,
		}, nil
	case "updateToken":
		return UpdateToken{
			AccessToken:  env.AccessToken,
			RefreshToken: env.RefreshToken,
		}, nil
	case "updateConfig":
		if env.Config == nil {
			return nil, fmt.Errorf("%w: updateConfig without config", ErrUnknownEvent)
		}
		return UpdateConfig{Config: *env.Config}, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnknownEvent, env.Type)
	}
}

// EventResult is one item of a channel subscription stream: either a decoded
// event or a transport error.
type EventResult struct {
	Event TerminalEvent
	Err   error
}
