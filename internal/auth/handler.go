// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/lms-backend/internal/account"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/middleware"
)

const expiredCookieValue = "expired"

type HandlerConfig struct {
	// MobileClientHeader marks a client that takes tokens in the response
	// body instead of cookies. Presence is enough.
	MobileClientHeader string
	// RefererHeader names the frontend base used in emailed links.
	RefererHeader   string
	Production      bool
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type Handler struct {
	service   *Service
	validator *validator.Validate
	cfg       HandlerConfig
}

func NewHandler(service *Service, cfg HandlerConfig) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
	}
}

// RegisterRoutes mounts /auth. rateLimit may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	rateLimit func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		if rateLimit != nil {
			r.Use(rateLimit)
		}

		r.Post("/sign-up", h.SignUp)
		r.Get("/verify-account", h.VerifyAccount)
		r.Post("/sign-in", h.SignIn)
		r.Post("/admin/sign-in", h.AdminSignIn)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)

		r.With(authenticator).Post("/sign-out", h.SignOut)
	})
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.service.SignUp(r.Context(), SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		AccountType: req.AccountType,
		IPAddress:   middleware.ClientIP(r),
		LinkBase:    r.Header.Get(h.cfg.RefererHeader),
	})
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, account.ToResponse(a), "Verification link sent to "+a.Email)
}

func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("verificationToken")

	if err := h.service.VerifyAccount(r.Context(), token); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, nil, "Email verified successfully")
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, "")
}

func (h *Handler) AdminSignIn(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, account.RoleSuperAdmin)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, requiredRole string) {
	var req SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.SignIn(r.Context(), Credentials{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: middleware.ClientIP(r),
	}, requiredRole)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	resp := SignInResponse{Account: account.ToResponse(result.Account)}
	if h.isMobile(r) {
		resp.Tokens = &result.Tokens
	} else {
		h.setTokenCookie(w, middleware.AccessTokenCookie,
			result.Tokens.AccessToken, int(h.cfg.AccessTokenTTL.Seconds()))
		h.setTokenCookie(w, middleware.RefreshTokenCookie,
			result.Tokens.RefreshToken, int(h.cfg.RefreshTokenTTL.Seconds()))
	}

	core.OK(w, resp, "User logged in successfully")
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		core.JSONError(w, err)
		return
	}

	if h.isMobile(r) {
		core.OK(w, SignOutResponse{Tokens: &TokenPair{
			AccessToken:  expiredCookieValue,
			RefreshToken: expiredCookieValue,
		}}, "Logout successful")
		return
	}

	h.setTokenCookie(w, middleware.AccessTokenCookie, expiredCookieValue, -1)
	h.setTokenCookie(w, middleware.RefreshTokenCookie, expiredCookieValue, -1)

	core.OK(w, nil, "Logout successful")
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ForgotPassword(
		r.Context(),
		req.Email,
		r.Header.Get(h.cfg.RefererHeader),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, nil, "Password reset link sent to "+req.Email)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), ResetPasswordInput{
		Token:           req.Token,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, nil, "Password reset successfully")
}

// decode reads an optional JSON body and applies format rules. An empty
// body decodes to the zero request so presence checks stay in the service.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		core.JSONError(w, core.InvalidInputError("invalid request body"))
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func (h *Handler) isMobile(r *http.Request) bool {
	if h.cfg.MobileClientHeader == "" {
		return false
	}
	_, ok := r.Header[http.CanonicalHeaderKey(h.cfg.MobileClientHeader)]
	return ok
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	}

	if h.cfg.Production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Partitioned = true
	}

	http.SetCookie(w, cookie)
}
