// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/lms-backend/internal/account"
	"github.com/carterperez-dev/templates/lms-backend/internal/config"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/notify"
)

type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
	now      func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		accounts: make(map[string]*account.Account),
		now:      now,
	}
}

func (s *memoryStore) Create(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.IsDeleted {
			continue
		}
		if existing.Email == a.Email || existing.Username == a.Username {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.LastLogin.IsZero() {
		a.LastLogin = now
	}

	stored := *a
	s.accounts[a.ID] = &stored
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *memoryStore) find(match func(*account.Account) bool) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *account.Account
	for _, a := range s.accounts {
		if !match(a) {
			continue
		}
		if found == nil || (found.IsDeleted && !a.IsDeleted) {
			found = a
		}
	}
	if found == nil {
		return nil, fmt.Errorf("find account: %w", core.ErrNotFound)
	}
	cp := *found
	return &cp, nil
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return a.Email == email })
}

func (s *memoryStore) FindByUsername(_ context.Context, username string) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return a.Username == username })
}

func (s *memoryStore) FindByEmailOrUsername(
	_ context.Context,
	email, username string,
) (*account.Account, error) {
	if a, err := s.find(func(a *account.Account) bool {
		return !a.IsDeleted && a.Email == email
	}); err == nil {
		return a, nil
	}
	return s.find(func(a *account.Account) bool {
		return !a.IsDeleted && a.Username == username
	})
}

func (s *memoryStore) FindByVerificationToken(
	_ context.Context,
	secret string,
) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return a.VerificationToken == secret })
}

func (s *memoryStore) FindByPasswordResetToken(
	_ context.Context,
	secret string,
	now time.Time,
) (*account.Account, error) {
	return s.find(func(a *account.Account) bool {
		return a.PasswordResetToken != nil &&
			*a.PasswordResetToken == secret &&
			a.PasswordResetExpires != nil &&
			a.PasswordResetExpires.After(now) &&
			!a.IsSuspended
	})
}

func (s *memoryStore) Update(
	_ context.Context,
	id string,
	u account.Update,
) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("update account: %w", core.ErrNotFound)
	}

	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.IsEmailVerified != nil {
		a.IsEmailVerified = *u.IsEmailVerified
	}
	if u.TokenIsUsed != nil {
		a.TokenIsUsed = *u.TokenIsUsed
	}
	if u.LoginRetries != nil {
		a.LoginRetries = *u.LoginRetries
	}
	if u.LastLogin != nil {
		a.LastLogin = *u.LastLogin
	}
	if u.PasswordResetToken != nil {
		if *u.PasswordResetToken == "" {
			a.PasswordResetToken = nil
		} else {
			token := *u.PasswordResetToken
			a.PasswordResetToken = &token
		}
	}
	if u.PasswordResetExpires != nil {
		expires := *u.PasswordResetExpires
		a.PasswordResetExpires = &expires
	}
	if u.PasswordResetRetries != nil {
		a.PasswordResetRetries = *u.PasswordResetRetries
	}
	if u.PasswordChangedAt != nil {
		changed := *u.PasswordChangedAt
		a.PasswordChangedAt = &changed
	}
	if u.IsSuspended != nil {
		a.IsSuspended = *u.IsSuspended
	}
	if u.IsDeleted != nil {
		a.IsDeleted = *u.IsDeleted
	}
	if u.IPAddress != nil {
		a.IPAddress = *u.IPAddress
	}
	a.UpdatedAt = s.now()

	cp := *a
	return &cp, nil
}

func (s *memoryStore) List(
	_ context.Context,
	_ account.ListParams,
) ([]account.Account, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (s *memoryStore) Stats(_ context.Context) (account.Stats, error) {
	return account.Stats{Total: len(s.accounts)}, nil
}

// mutate edits a stored account directly, for arranging test state.
func (s *memoryStore) mutate(t *testing.T, id string, fn func(a *account.Account)) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	require.True(t, ok, "account %s not stored", id)
	fn(a)
}

func (s *memoryStore) get(t *testing.T, id string) account.Account {
	t.Helper()
	a, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *a
}

type plainHasher struct {
	mu          sync.Mutex
	verifyCalls int
}

func (h *plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *plainHasher) Verify(password, encodedHash string) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	return encodedHash == "hashed:"+password, nil
}

func (h *plainHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifyCalls
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []notify.Event
}

func (e *recordingEmitter) Emit(_ context.Context, ev notify.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) last(t *testing.T) notify.Event {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.events, "no events emitted")
	return e.events[len(e.events)-1]
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AuthSecret:         "auth-secret-for-tests-0123456789abcdef",
		AccessSecret:       "access-secret-for-tests-0123456789abcd",
		RefreshSecret:      "refresh-secret-for-tests-0123456789abc",
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "lms-backend-test",
		MobileClientHeader: "100minds",
		RefererHeader:      "x-referer",
	}
}

type harness struct {
	svc     *Service
	store   *memoryStore
	hasher  *plainHasher
	emitter *recordingEmitter
	tokens  *TokenManager
	clock   *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC)}
	store := newMemoryStore(clock.Now)
	hasher := &plainHasher{}
	emitter := &recordingEmitter{}

	tokens, err := NewTokenManager(testAuthConfig())
	require.NoError(t, err)
	tokens.now = clock.Now

	svc := NewService(store, tokens, hasher, emitter, Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		FrontendURL:     "http://localhost:3000",
	}, WithClock(clock.Now))

	return &harness{
		svc:     svc,
		store:   store,
		hasher:  hasher,
		emitter: emitter,
		tokens:  tokens,
		clock:   clock,
	}
}

func adaSignUp() SignUpInput {
	return SignUpInput{
		Email:       "a@x.com",
		Username:    "a1",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Password:    "Abc123!@",
		AccountType: account.TypePersonal,
	}
}

// signUpVerified creates an account and marks it verified, bypassing email.
func (h *harness) signUpVerified(t *testing.T, in SignUpInput) *account.Account {
	t.Helper()
	a, err := h.svc.SignUp(context.Background(), in)
	require.NoError(t, err)
	h.store.mutate(t, a.ID, func(a *account.Account) {
		a.IsEmailVerified = true
		a.TokenIsUsed = true
	})
	return a
}

// linkToken pulls the signed token out of an emailed link.
func linkToken(t *testing.T, link, marker string) string {
	t.Helper()
	idx := strings.Index(link, marker)
	require.GreaterOrEqual(t, idx, 0, "marker %q not in %q", marker, link)
	return link[idx+len(marker):]
}

func requireAppError(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := core.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	require.ErrorIs(t, err, kind)
	require.Equal(t, message, appErr.Message)
}
