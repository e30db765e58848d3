// AngelaMos | 2026
// dto.go

package auth

import (
	"github.com/carterperez-dev/templates/lms-backend/internal/account"
)

// Request bodies only carry format rules. Presence is checked by the
// service so missing fields produce the lifecycle's own messages.

type SignUpRequest struct {
	Email       string `json:"email"       validate:"omitempty,email,max=255"`
	Password    string `json:"password"    validate:"omitempty,min=8,max=128"`
	FirstName   string `json:"firstName"   validate:"omitempty,max=100"`
	LastName    string `json:"lastName"    validate:"omitempty,max=100"`
	Username    string `json:"username"    validate:"omitempty,min=2,max=50"`
	AccountType string `json:"accountType"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"omitempty,max=255"`
	Password string `json:"password" validate:"omitempty,max=128"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"omitempty,max=255"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"        validate:"omitempty,min=8,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,max=128"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignInResponse carries tokens only for clients that cannot hold cookies.
type SignInResponse struct {
	Account account.Response `json:"account"`
	Tokens  *TokenPair       `json:"tokens,omitempty"`
}

type SignOutResponse struct {
	Tokens *TokenPair `json:"tokens,omitempty"`
}

type SignUpInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Username    string
	AccountType string
	IPAddress   string
	LinkBase    string
}

type Credentials struct {
	Email     string
	Password  string
	IPAddress string
}

type ResetPasswordInput struct {
	Token           string
	Password        string
	ConfirmPassword string
}

type SignInResult struct {
	Account *account.Account
	Tokens  TokenPair
}
