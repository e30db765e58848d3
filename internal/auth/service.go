// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/lms-backend/internal/account"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/notify"
)

const (
	tracerName = "lms-backend/auth"

	VerificationTokenTTL  = 30 * 24 * time.Hour
	PasswordResetTokenTTL = 15 * time.Minute

	MaxLoginRetries         = 5
	LoginLockoutWindow      = 12 * time.Hour
	MaxPasswordResetRetries = 6

	loginTimeLayout = "Monday, January 2, 2006 at 3:04 PM"
)

type Tokens interface {
	Sign(purpose Purpose, p Payload, ttl time.Duration) (string, error)
	Verify(purpose Purpose, token string) (*Payload, error)
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// FrontendURL is the link base when the request does not name one.
	FrontendURL string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service drives the account lifecycle: sign up, verification, sign in,
// sign out and password recovery. Every guard runs before any password
// hashing or comparison it protects.
type Service struct {
	store   account.Store
	tokens  Tokens
	hasher  Hasher
	emitter notify.Emitter
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	store account.Store,
	tokens Tokens,
	hasher Hasher,
	emitter notify.Emitter,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		store:   store,
		tokens:  tokens,
		hasher:  hasher,
		emitter: emitter,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	if s.emitter == nil {
		s.emitter = notify.NopEmitter{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) SignUp(
	ctx context.Context,
	in SignUpInput,
) (_ *account.Account, err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "auth.SignUp")
	defer func() { core.EndSpan(span, err) }()

	email := account.NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if in.FirstName == "" || in.LastName == "" || email == "" ||
		username == "" || in.Password == "" {
		return nil, core.ValidationError("Incomplete signup data")
	}
	if !account.ValidAccountType(in.AccountType) {
		return nil, core.ValidationError("Invalid account type")
	}

	if err := s.checkAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	secret, err := core.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate verification secret: %w", err)
	}

	signed, err := s.tokens.Sign(
		PurposeVerification,
		Payload{Secret: secret},
		VerificationTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("sign verification token: %w", err)
	}

	a := &account.Account{
		Email:                    email,
		Username:                 username,
		FirstName:                in.FirstName,
		LastName:                 in.LastName,
		PasswordHash:             passwordHash,
		AccountType:              in.AccountType,
		Role:                     account.RoleUser,
		IPAddress:                in.IPAddress,
		VerificationToken:        secret,
		VerificationTokenExpires: s.now().Add(VerificationTokenTTL),
	}

	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			// lost a race with a concurrent sign up
			if conflict := s.checkAvailable(ctx, email, username); conflict != nil {
				return nil, conflict
			}
			return nil, core.ConflictError("User with this email already exists")
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	span.SetAttributes(attribute.String("account.id", a.ID))

	s.emitter.Emit(ctx, notify.Event{
		Type:      notify.TypeSignup,
		Recipient: a.Email,
		Data: map[string]string{
			notify.KeyName:            a.FirstName,
			notify.KeyVerificationURL: s.linkBase(in.LinkBase) + "/auth?verify=" + signed,
		},
	})

	return a, nil
}

func (s *Service) checkAvailable(ctx context.Context, email, username string) error {
	existing, err := s.store.FindByEmailOrUsername(ctx, email, username)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check existing account: %w", err)
	}

	if existing.Email == email {
		return core.ConflictError("User with this email already exists")
	}
	return core.ConflictError("User with this username already exists")
}

// VerifyAccount consumes a verification token. It succeeds at most once
// per account.
func (s *Service) VerifyAccount(ctx context.Context, signedToken string) (err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "auth.VerifyAccount")
	defer func() { core.EndSpan(span, err) }()

	if signedToken == "" {
		return core.ValidationError("Verification token is required")
	}

	payload, err := s.tokens.Verify(PurposeVerification, signedToken)
	if err != nil || payload.Secret == "" {
		return core.AuthError("Invalid verification token")
	}

	a, err := s.store.FindByVerificationToken(ctx, payload.Secret)
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundError("Invalid or expired verification token")
	}
	if err != nil {
		return fmt.Errorf("find account by verification token: %w", err)
	}

	if a.IsEmailVerified {
		return core.ValidationError("Account Already Verified")
	}
	if a.TokenIsUsed {
		return core.ValidationError("Verification token has already been used")
	}
	if s.now().After(a.VerificationTokenExpires) {
		return core.ValidationError("Verification token has expired")
	}

	if _, err := s.store.Update(ctx, a.ID, account.Update{
		TokenIsUsed:     account.Ptr(true),
		IsEmailVerified: account.Ptr(true),
	}); err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}

	s.emitter.Emit(ctx, notify.Event{
		Type:      notify.TypeWelcome,
		Recipient: a.Email,
		Data:      map[string]string{notify.KeyName: a.FirstName},
	})

	return nil
}

// SignIn authenticates credentials. A non-empty requiredRole restricts
// sign in to accounts holding exactly that role.
func (s *Service) SignIn(
	ctx context.Context,
	creds Credentials,
	requiredRole string,
) (_ *SignInResult, err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "auth.SignIn",
		attribute.String("auth.required_role", requiredRole),
	)
	defer func() { core.EndSpan(span, err) }()

	email := account.NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, core.ValidationError("Incomplete login data")
	}

	a, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.NotFoundError("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find account by email: %w", err)
	}

	span.SetAttributes(attribute.String("account.id", a.ID))

	if requiredRole != "" && !a.HasRole(requiredRole) {
		return nil, core.AuthError("Unauthorized access")
	}

	now := s.now()
	if lockedOut(a, now) {
		s.logger.WarnContext(ctx, "sign in blocked by retry guard",
			"account_id", a.ID,
			"login_retries", a.LoginRetries,
		)
		return nil, core.AuthError("login retries exceeded!")
	}

	ok, err := s.hasher.Verify(creds.Password, a.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		// absolute write of the value read above; concurrent failures can
		// overwrite each other
		if _, err := s.store.Update(ctx, a.ID, account.Update{
			LoginRetries: account.Ptr(a.LoginRetries + 1),
		}); err != nil {
			return nil, fmt.Errorf("record failed sign in: %w", err)
		}
		return nil, core.AuthError("Invalid credentials")
	}

	if !a.IsEmailVerified {
		return nil, core.AuthError("Your account is not yet verified")
	}
	if a.IsSuspended {
		return nil, core.AuthError("Your account is currently suspended")
	}
	if a.IsDeleted {
		return nil, core.AuthError("Your account is currently deleted")
	}

	accessToken, err := s.tokens.Sign(
		PurposeAccess,
		Payload{Subject: a.ID, Role: a.Role},
		s.cfg.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.tokens.Sign(
		PurposeRefresh,
		Payload{Subject: a.ID},
		s.cfg.RefreshTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	update := account.Update{
		LoginRetries: account.Ptr(0),
		LastLogin:    &now,
	}
	if creds.IPAddress != "" {
		update.IPAddress = &creds.IPAddress
	}

	updated, err := s.store.Update(ctx, a.ID, update)
	if err != nil {
		return nil, fmt.Errorf("record sign in: %w", err)
	}

	s.emitter.Emit(ctx, notify.Event{
		Type:      notify.TypeLoginAlert,
		Recipient: a.Email,
		Data: map[string]string{
			notify.KeyName: a.FirstName,
			notify.KeyTime: now.Format(loginTimeLayout),
		},
	})

	return &SignInResult{
		Account: updated,
		Tokens: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
	}, nil
}

func lockedOut(a *account.Account, now time.Time) bool {
	return a.LoginRetries >= MaxLoginRetries &&
		now.Sub(a.LastLogin) < LoginLockoutWindow
}

// SignOut only checks that a caller is present. Clearing the token
// channels is the transport's job.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	_, span := core.StartSpan(ctx, tracerName, "auth.SignOut")
	defer span.End()

	if userID == "" {
		return core.AuthError("You are not logged in")
	}
	return nil
}

func (s *Service) ForgotPassword(
	ctx context.Context,
	email, linkBase string,
) (err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "auth.ForgotPassword")
	defer func() { core.EndSpan(span, err) }()

	email = account.NormalizeEmail(email)
	if email == "" {
		return core.ValidationError("Email is required")
	}

	a, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundError("No user found with provided email")
	}
	if err != nil {
		return fmt.Errorf("find account by email: %w", err)
	}

	if a.PasswordResetRetries >= MaxPasswordResetRetries {
		if _, err := s.store.Update(ctx, a.ID, account.Update{
			IsSuspended: account.Ptr(true),
		}); err != nil {
			return fmt.Errorf("suspend account: %w", err)
		}
		s.logger.WarnContext(ctx, "account suspended after password reset retries",
			"account_id", a.ID,
			"password_reset_retries", a.PasswordResetRetries,
		)
		return core.AuthError("Password reset retries exceeded! and account suspended")
	}

	secret, err := core.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generate reset secret: %w", err)
	}

	signed, err := s.tokens.Sign(
		PurposePasswordReset,
		Payload{Secret: secret},
		PasswordResetTokenTTL,
	)
	if err != nil {
		return fmt.Errorf("sign reset token: %w", err)
	}

	expires := s.now().Add(PasswordResetTokenTTL)
	if _, err := s.store.Update(ctx, a.ID, account.Update{
		PasswordResetToken:   &secret,
		PasswordResetExpires: &expires,
		PasswordResetRetries: account.Ptr(a.PasswordResetRetries + 1),
	}); err != nil {
		return fmt.Errorf("store reset secret: %w", err)
	}

	s.emitter.Emit(ctx, notify.Event{
		Type:      notify.TypeForgotPassword,
		Recipient: a.Email,
		Data: map[string]string{
			notify.KeyName:      a.FirstName,
			notify.KeyResetLink: s.linkBase(linkBase) + "/reset-password?token=" + signed,
		},
	})

	return nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	in ResetPasswordInput,
) (err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "auth.ResetPassword")
	defer func() { core.EndSpan(span, err) }()

	if in.Token == "" || in.Password == "" || in.ConfirmPassword == "" {
		return core.ValidationError("All fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return core.ValidationError("Passwords do not match")
	}

	payload, err := s.tokens.Verify(PurposePasswordReset, in.Token)
	if err != nil || payload.Secret == "" {
		return core.AuthError("Invalid token")
	}

	now := s.now()

	// expired and unknown secrets are deliberately indistinguishable
	a, err := s.store.FindByPasswordResetToken(ctx, payload.Secret, now)
	if errors.Is(err, core.ErrNotFound) {
		return core.ValidationError("Password reset token is invalid or has expired")
	}
	if err != nil {
		return fmt.Errorf("find account by reset token: %w", err)
	}

	same, err := s.hasher.Verify(in.Password, a.PasswordHash)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if same {
		return core.ValidationError("New password cannot be the same as the old password")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.store.Update(ctx, a.ID, account.Update{
		PasswordHash:         &passwordHash,
		PasswordResetRetries: account.Ptr(0),
		PasswordChangedAt:    &now,
		PasswordResetToken:   account.Ptr(""),
		PasswordResetExpires: &now,
	}); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	s.emitter.Emit(ctx, notify.Event{
		Type:      notify.TypeResetPassword,
		Recipient: a.Email,
		Data:      map[string]string{notify.KeyName: a.FirstName},
	})

	return nil
}

func (s *Service) linkBase(fromRequest string) string {
	base := strings.TrimSpace(fromRequest)
	if base == "" {
		base = s.cfg.FrontendURL
	}
	return strings.TrimRight(base, "/")
}
