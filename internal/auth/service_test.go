// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/lms-backend/internal/account"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/notify"
)

func TestSignUp_CreatesUnverifiedAccountAndQueuesEmail(t *testing.T) {
	h := newHarness(t)

	a, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)

	stored := h.store.get(t, a.ID)
	assert.False(t, stored.IsEmailVerified)
	assert.False(t, stored.TokenIsUsed)
	assert.Equal(t, 0, stored.LoginRetries)
	assert.Equal(t, account.RoleUser, stored.Role)
	assert.Equal(t, "hashed:Abc123!@", stored.PasswordHash)
	assert.Len(t, stored.VerificationToken, 64)
	assert.Equal(t, h.clock.Now().Add(30*24*time.Hour), stored.VerificationTokenExpires)

	ev := h.emitter.last(t)
	assert.Equal(t, notify.TypeSignup, ev.Type)
	assert.Equal(t, "a@x.com", ev.Recipient)
	assert.Equal(t, "Ada", ev.Data[notify.KeyName])
	assert.Contains(t, ev.Data[notify.KeyVerificationURL], "http://localhost:3000/auth?verify=")

	// the link carries a signed wrapper, never the raw secret
	signed := linkToken(t, ev.Data[notify.KeyVerificationURL], "?verify=")
	assert.NotEqual(t, stored.VerificationToken, signed)
	payload, err := h.tokens.Verify(PurposeVerification, signed)
	require.NoError(t, err)
	assert.Equal(t, stored.VerificationToken, payload.Secret)
}

func TestSignUp_NormalizesEmail(t *testing.T) {
	h := newHarness(t)

	in := adaSignUp()
	in.Email = "  A@X.com "
	a, err := h.svc.SignUp(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", a.Email)
}

func TestSignUp_UsesRefererForLinks(t *testing.T) {
	h := newHarness(t)

	in := adaSignUp()
	in.LinkBase = "https://app.example.com/"
	_, err := h.svc.SignUp(context.Background(), in)
	require.NoError(t, err)

	link := h.emitter.last(t).Data[notify.KeyVerificationURL]
	assert.Contains(t, link, "https://app.example.com/auth?verify=")
}

func TestSignUp_RejectsIncompleteData(t *testing.T) {
	h := newHarness(t)

	cases := map[string]func(*SignUpInput){
		"email":     func(in *SignUpInput) { in.Email = "" },
		"username":  func(in *SignUpInput) { in.Username = "" },
		"firstName": func(in *SignUpInput) { in.FirstName = "" },
		"lastName":  func(in *SignUpInput) { in.LastName = "" },
		"password":  func(in *SignUpInput) { in.Password = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := adaSignUp()
			mutate(&in)
			_, err := h.svc.SignUp(context.Background(), in)
			requireAppError(t, err, core.ErrValidation, "Incomplete signup data")
		})
	}
	assert.Equal(t, 0, h.emitter.count())
}

func TestSignUp_RejectsUnknownAccountType(t *testing.T) {
	h := newHarness(t)

	in := adaSignUp()
	in.AccountType = "enterprise"
	_, err := h.svc.SignUp(context.Background(), in)
	requireAppError(t, err, core.ErrValidation, "Invalid account type")
}

func TestSignUp_DistinguishesEmailAndUsernameConflicts(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)

	sameEmail := adaSignUp()
	sameEmail.Username = "someone-else"
	_, err = h.svc.SignUp(context.Background(), sameEmail)
	requireAppError(t, err, core.ErrConflict, "User with this email already exists")

	sameUsername := adaSignUp()
	sameUsername.Email = "b@x.com"
	_, err = h.svc.SignUp(context.Background(), sameUsername)
	requireAppError(t, err, core.ErrConflict, "User with this username already exists")
}

func TestSignUp_DeletedAccountFreesEmail(t *testing.T) {
	h := newHarness(t)
	first, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	h.store.mutate(t, first.ID, func(a *account.Account) { a.IsDeleted = true })

	second, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestVerifyAccount_SucceedsOnceThenReportsAlreadyVerified(t *testing.T) {
	h := newHarness(t)
	a, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	signed := linkToken(t, h.emitter.last(t).Data[notify.KeyVerificationURL], "?verify=")

	require.NoError(t, h.svc.VerifyAccount(context.Background(), signed))

	stored := h.store.get(t, a.ID)
	assert.True(t, stored.IsEmailVerified)
	assert.True(t, stored.TokenIsUsed)

	ev := h.emitter.last(t)
	assert.Equal(t, notify.TypeWelcome, ev.Type)
	assert.Equal(t, "a@x.com", ev.Recipient)

	err = h.svc.VerifyAccount(context.Background(), signed)
	requireAppError(t, err, core.ErrValidation, "Account Already Verified")
}

func TestVerifyAccount_UsedTokenOnUnverifiedAccount(t *testing.T) {
	h := newHarness(t)
	a, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	signed := linkToken(t, h.emitter.last(t).Data[notify.KeyVerificationURL], "?verify=")
	h.store.mutate(t, a.ID, func(a *account.Account) { a.TokenIsUsed = true })

	err = h.svc.VerifyAccount(context.Background(), signed)
	requireAppError(t, err, core.ErrValidation, "Verification token has already been used")
}

func TestVerifyAccount_StoredExpiryIsAbsolute(t *testing.T) {
	h := newHarness(t)
	a, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	signed := linkToken(t, h.emitter.last(t).Data[notify.KeyVerificationURL], "?verify=")
	h.store.mutate(t, a.ID, func(a *account.Account) {
		a.VerificationTokenExpires = h.clock.Now().Add(-time.Second)
	})

	err = h.svc.VerifyAccount(context.Background(), signed)
	requireAppError(t, err, core.ErrValidation, "Verification token has expired")
	assert.False(t, h.store.get(t, a.ID).IsEmailVerified)
}

func TestVerifyAccount_ExpiredSignedTokenFails(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	signed := linkToken(t, h.emitter.last(t).Data[notify.KeyVerificationURL], "?verify=")

	h.clock.Advance(31 * 24 * time.Hour)

	err = h.svc.VerifyAccount(context.Background(), signed)
	requireAppError(t, err, core.ErrUnauthorized, "Invalid verification token")
}

func TestVerifyAccount_InputErrors(t *testing.T) {
	h := newHarness(t)

	err := h.svc.VerifyAccount(context.Background(), "")
	requireAppError(t, err, core.ErrValidation, "Verification token is required")

	err = h.svc.VerifyAccount(context.Background(), "not-a-token")
	requireAppError(t, err, core.ErrUnauthorized, "Invalid verification token")

	// a reset token is signed with the same secret but is the wrong purpose
	reset, err := h.tokens.Sign(PurposePasswordReset, Payload{Secret: "abc"}, time.Hour)
	require.NoError(t, err)
	err = h.svc.VerifyAccount(context.Background(), reset)
	requireAppError(t, err, core.ErrUnauthorized, "Invalid verification token")

	unknown, err := h.tokens.Sign(PurposeVerification, Payload{Secret: "nobody"}, time.Hour)
	require.NoError(t, err)
	err = h.svc.VerifyAccount(context.Background(), unknown)
	requireAppError(t, err, core.ErrNotFound, "Invalid or expired verification token")
}

func TestSignIn_Success(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) { a.LoginRetries = 3 })

	res, err := h.svc.SignIn(context.Background(), Credentials{
		Email:     "A@x.com",
		Password:  "Abc123!@",
		IPAddress: "10.0.0.1",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, 0, res.Account.LoginRetries)
	assert.Equal(t, h.clock.Now(), res.Account.LastLogin)
	assert.Equal(t, "10.0.0.1", res.Account.IPAddress)

	access, err := h.tokens.Verify(PurposeAccess, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, access.Subject)
	assert.Equal(t, account.RoleUser, access.Role)

	refresh, err := h.tokens.Verify(PurposeRefresh, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, refresh.Subject)

	_, err = h.tokens.Verify(PurposeAccess, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	ev := h.emitter.last(t)
	assert.Equal(t, notify.TypeLoginAlert, ev.Type)
	assert.Equal(t, "Monday, March 2, 2026 at 3:04 PM", ev.Data[notify.KeyTime])
}

func TestSignIn_InputErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com"}, "")
	requireAppError(t, err, core.ErrValidation, "Incomplete login data")

	_, err = h.svc.SignIn(context.Background(), Credentials{Password: "x"}, "")
	requireAppError(t, err, core.ErrValidation, "Incomplete login data")

	_, err = h.svc.SignIn(context.Background(), Credentials{Email: "ghost@x.com", Password: "x"}, "")
	requireAppError(t, err, core.ErrNotFound, "User not found")
}

func TestSignIn_WrongPasswordIncrementsRetries(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())

	_, err := h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "wrong"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "Invalid credentials")

	assert.Equal(t, 1, h.store.get(t, a.ID).LoginRetries)
}

func TestSignIn_LockoutIgnoresPasswordCorrectness(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) {
		a.LoginRetries = 5
		a.LastLogin = h.clock.Now().Add(-time.Hour)
	})
	callsBefore := h.hasher.calls()

	_, err := h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "Abc123!@"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "login retries exceeded!")

	assert.Equal(t, callsBefore, h.hasher.calls(), "password must not be compared while locked out")
	assert.Equal(t, 5, h.store.get(t, a.ID).LoginRetries)
}

func TestSignIn_LockoutExpiresAfterWindow(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) {
		a.LoginRetries = 5
		a.LastLogin = h.clock.Now().Add(-13 * time.Hour)
	})

	res, err := h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "Abc123!@"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Account.LoginRetries)
	assert.Equal(t, 0, h.store.get(t, a.ID).LoginRetries)
}

func TestSignIn_FiveFailuresLockTheSixthAttempt(t *testing.T) {
	h := newHarness(t)
	h.signUpVerified(t, adaSignUp())

	for range MaxLoginRetries {
		h.clock.Advance(time.Minute)
		_, err := h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "wrong"}, "")
		requireAppError(t, err, core.ErrUnauthorized, "Invalid credentials")
	}

	_, err := h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "Abc123!@"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "login retries exceeded!")
}

func TestSignIn_StandingChecksInOrder(t *testing.T) {
	h := newHarness(t)

	unverified, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	_, err = h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "Abc123!@"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "Your account is not yet verified")

	h.store.mutate(t, unverified.ID, func(a *account.Account) {
		a.IsEmailVerified = true
		a.IsSuspended = true
		a.IsDeleted = true
	})
	_, err = h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "Abc123!@"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "Your account is currently suspended")

	h.store.mutate(t, unverified.ID, func(a *account.Account) { a.IsSuspended = false })
	_, err = h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "Abc123!@"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "Your account is currently deleted")
}

func TestSignIn_StandingChecksComeAfterPassword(t *testing.T) {
	h := newHarness(t)
	a, err := h.svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)

	_, err = h.svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "wrong"}, "")
	requireAppError(t, err, core.ErrUnauthorized, "Invalid credentials")
	assert.Equal(t, 1, h.store.get(t, a.ID).LoginRetries)
}

func TestSignIn_RequiredRoleCheckedBeforeRetryGuard(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) {
		a.LoginRetries = 5
		a.LastLogin = h.clock.Now()
	})

	_, err := h.svc.SignIn(context.Background(),
		Credentials{Email: "a@x.com", Password: "Abc123!@"}, account.RoleSuperAdmin)
	requireAppError(t, err, core.ErrUnauthorized, "Unauthorized access")
}

func TestSignIn_SuperAdmin(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) { a.Role = account.RoleSuperAdmin })

	res, err := h.svc.SignIn(context.Background(),
		Credentials{Email: "a@x.com", Password: "Abc123!@"}, account.RoleSuperAdmin)
	require.NoError(t, err)

	claims, err := h.tokens.VerifyAccessToken(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.RoleSuperAdmin, claims.Role)
}

// Failed sign ins write an absolute counter computed from the value read at
// the start of the request. Two requests that read the same row before
// either writes both store N+1, so one failure goes uncounted. This pins
// that behaviour; switching to an atomic increment must update this test.
func TestSignIn_ConcurrentFailuresCanLoseAnUpdate(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())

	snapshot := h.store.get(t, a.ID)
	stale := &staleReadStore{memoryStore: h.store, snapshot: snapshot}
	svc := NewService(stale, h.tokens, h.hasher, h.emitter, h.svc.cfg, WithClock(h.clock.Now))

	for range 2 {
		_, err := svc.SignIn(context.Background(), Credentials{Email: "a@x.com", Password: "wrong"}, "")
		requireAppError(t, err, core.ErrUnauthorized, "Invalid credentials")
	}

	assert.Equal(t, 1, h.store.get(t, a.ID).LoginRetries)
}

// staleReadStore answers email lookups with a fixed snapshot, as two
// overlapping requests would both observe the row before either write.
type staleReadStore struct {
	*memoryStore
	snapshot account.Account
}

func (s *staleReadStore) FindByEmail(_ context.Context, _ string) (*account.Account, error) {
	cp := s.snapshot
	return &cp, nil
}

func TestSignOut_RequiresCaller(t *testing.T) {
	h := newHarness(t)

	err := h.svc.SignOut(context.Background(), "")
	requireAppError(t, err, core.ErrUnauthorized, "You are not logged in")

	assert.NoError(t, h.svc.SignOut(context.Background(), "user-1"))
}

func TestForgotPassword_StoresSecretAndQueuesLink(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())

	require.NoError(t, h.svc.ForgotPassword(context.Background(), "a@x.com", ""))

	stored := h.store.get(t, a.ID)
	require.NotNil(t, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), *stored.PasswordResetExpires)
	assert.Equal(t, 1, stored.PasswordResetRetries)

	ev := h.emitter.last(t)
	assert.Equal(t, notify.TypeForgotPassword, ev.Type)
	assert.Contains(t, ev.Data[notify.KeyResetLink], "http://localhost:3000/reset-password?token=")

	signed := linkToken(t, ev.Data[notify.KeyResetLink], "?token=")
	payload, err := h.tokens.Verify(PurposePasswordReset, signed)
	require.NoError(t, err)
	assert.Equal(t, *stored.PasswordResetToken, payload.Secret)
}

func TestForgotPassword_InputErrors(t *testing.T) {
	h := newHarness(t)

	err := h.svc.ForgotPassword(context.Background(), "", "")
	requireAppError(t, err, core.ErrValidation, "Email is required")

	err = h.svc.ForgotPassword(context.Background(), "ghost@x.com", "")
	requireAppError(t, err, core.ErrNotFound, "No user found with provided email")
}

func TestForgotPassword_RetryCeilingSuspends(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) { a.PasswordResetRetries = 6 })
	eventsBefore := h.emitter.count()

	err := h.svc.ForgotPassword(context.Background(), "a@x.com", "")
	requireAppError(t, err, core.ErrUnauthorized, "Password reset retries exceeded! and account suspended")

	stored := h.store.get(t, a.ID)
	assert.True(t, stored.IsSuspended)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Equal(t, eventsBefore, h.emitter.count())
}

func requestReset(t *testing.T, h *harness) string {
	t.Helper()
	require.NoError(t, h.svc.ForgotPassword(context.Background(), "a@x.com", ""))
	return linkToken(t, h.emitter.last(t).Data[notify.KeyResetLink], "?token=")
}

func TestResetPassword_Success(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	h.store.mutate(t, a.ID, func(a *account.Account) { a.PasswordResetRetries = 2 })
	signed := requestReset(t, h)

	err := h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token:           signed,
		Password:        "NewPass1!",
		ConfirmPassword: "NewPass1!",
	})
	require.NoError(t, err)

	stored := h.store.get(t, a.ID)
	assert.Equal(t, "hashed:NewPass1!", stored.PasswordHash)
	assert.Equal(t, 0, stored.PasswordResetRetries)
	assert.Nil(t, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.Equal(t, h.clock.Now(), *stored.PasswordChangedAt)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, h.clock.Now(), *stored.PasswordResetExpires)

	assert.Equal(t, notify.TypeResetPassword, h.emitter.last(t).Type)

	// the same link cannot be replayed
	err = h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token:           signed,
		Password:        "Another1!",
		ConfirmPassword: "Another1!",
	})
	requireAppError(t, err, core.ErrValidation, "Password reset token is invalid or has expired")
}

func TestResetPassword_RejectsCurrentPassword(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	signed := requestReset(t, h)

	err := h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token:           signed,
		Password:        "Abc123!@",
		ConfirmPassword: "Abc123!@",
	})
	requireAppError(t, err, core.ErrValidation, "New password cannot be the same as the old password")
	assert.NotNil(t, h.store.get(t, a.ID).PasswordResetToken)
}

func TestResetPassword_StoredExpiryIsAbsolute(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	signed := requestReset(t, h)
	h.store.mutate(t, a.ID, func(a *account.Account) {
		past := h.clock.Now().Add(-time.Second)
		a.PasswordResetExpires = &past
	})

	err := h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token:           signed,
		Password:        "NewPass1!",
		ConfirmPassword: "NewPass1!",
	})
	requireAppError(t, err, core.ErrValidation, "Password reset token is invalid or has expired")
}

func TestResetPassword_SuspendedAccountCannotReset(t *testing.T) {
	h := newHarness(t)
	a := h.signUpVerified(t, adaSignUp())
	signed := requestReset(t, h)
	h.store.mutate(t, a.ID, func(a *account.Account) { a.IsSuspended = true })

	err := h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token:           signed,
		Password:        "NewPass1!",
		ConfirmPassword: "NewPass1!",
	})
	requireAppError(t, err, core.ErrValidation, "Password reset token is invalid or has expired")
}

func TestResetPassword_SignedTokenExpiresAfterFifteenMinutes(t *testing.T) {
	h := newHarness(t)
	h.signUpVerified(t, adaSignUp())
	signed := requestReset(t, h)

	h.clock.Advance(16 * time.Minute)

	err := h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token:           signed,
		Password:        "NewPass1!",
		ConfirmPassword: "NewPass1!",
	})
	requireAppError(t, err, core.ErrUnauthorized, "Invalid token")
}

func TestResetPassword_InputErrors(t *testing.T) {
	h := newHarness(t)

	err := h.svc.ResetPassword(context.Background(), ResetPasswordInput{Token: "t", Password: "p"})
	requireAppError(t, err, core.ErrValidation, "All fields are required")

	err = h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token: "t", Password: "p1", ConfirmPassword: "p2",
	})
	requireAppError(t, err, core.ErrValidation, "Passwords do not match")

	err = h.svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token: "garbage", Password: "p1", ConfirmPassword: "p1",
	})
	requireAppError(t, err, core.ErrUnauthorized, "Invalid token")
}

func TestNewService_NilEmitterDiscardsEvents(t *testing.T) {
	tokens, err := NewTokenManager(testAuthConfig())
	require.NoError(t, err)

	svc := NewService(newMemoryStore(time.Now), tokens, &plainHasher{}, nil, Config{
		FrontendURL: "http://localhost:3000",
	})

	a, err := svc.SignUp(context.Background(), adaSignUp())
	require.NoError(t, err)
	assert.NotEmpty(t, a.VerificationToken)
}
