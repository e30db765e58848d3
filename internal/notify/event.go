// AngelaMos | 2026
// event.go

package notify

import (
	"context"
	"time"
)

type Type string

const (
	TypeSignup         Type = "signup-email"
	TypeWelcome        Type = "welcome-email"
	TypeLoginAlert     Type = "login-alert"
	TypeForgotPassword Type = "forgot-password"
	TypeResetPassword  Type = "reset-password"
)

// Template data keys.
const (
	KeyName            = "name"
	KeyVerificationURL = "verificationUrl"
	KeyTime            = "time"
	KeyResetLink       = "resetLink"
)

type Event struct {
	Type      Type              `json:"type"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Emitter hands an event to the delivery pipeline and returns immediately.
// It reports nothing back: delivery problems are logged, never returned.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}
