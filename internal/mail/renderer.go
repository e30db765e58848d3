// AngelaMos | 2026
// renderer.go

package mail

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/carterperez-dev/templates/lms-backend/internal/notify"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrUnknownType = errors.New("no template for notification type")

type Message struct {
	To      string
	Subject string
	HTML    string
}

type layout struct {
	file    string
	subject string
}

var layouts = map[notify.Type]layout{
	notify.TypeSignup:         {"signup.html", "Verify your email to get started"},
	notify.TypeWelcome:        {"welcome.html", "Welcome aboard"},
	notify.TypeLoginAlert:     {"login_alert.html", "Login Alert"},
	notify.TypeForgotPassword: {"forgot_password.html", "Forgot Password"},
	notify.TypeResetPassword:  {"reset_password.html", "Reset Password"},
}

type templateData struct {
	Subject string
	Product string
	Name    string
	Link    string
	Time    string
}

// Renderer turns notification events into HTML emails. Templates are parsed
// once at construction.
type Renderer struct {
	product   string
	templates map[notify.Type]*template.Template
}

func NewRenderer(product string) (*Renderer, error) {
	templates := make(map[notify.Type]*template.Template, len(layouts))
	for typ, l := range layouts {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+l.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", typ, err)
		}
		templates[typ] = tmpl
	}

	return &Renderer{
		product:   product,
		templates: templates,
	}, nil
}

func (r *Renderer) Render(ev notify.Event) (Message, error) {
	tmpl, ok := r.templates[ev.Type]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
	if ev.Recipient == "" {
		return Message{}, fmt.Errorf("render %s: missing recipient", ev.Type)
	}

	subject := layouts[ev.Type].subject
	data := templateData{
		Subject: subject,
		Product: r.product,
		Name:    ev.Data[notify.KeyName],
		Time:    ev.Data[notify.KeyTime],
	}
	switch ev.Type {
	case notify.TypeSignup:
		data.Link = ev.Data[notify.KeyVerificationURL]
	case notify.TypeForgotPassword:
		data.Link = ev.Data[notify.KeyResetLink]
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return Message{}, fmt.Errorf("execute %s template: %w", ev.Type, err)
	}

	return Message{
		To:      ev.Recipient,
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}
