package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
)

// Session is a snapshot of the authenticated state
type Session struct {
	Identity
	IsAuthenticated bool
}

// Store is the single owner of the credential. It holds the identity in memory
// and mirrors the credential to a durable CredentialStore. Safe for concurrent use.
type Store struct {
	backend CredentialStore
	now     func() time.Time
	log     logr.Logger

	mu         sync.RWMutex
	credential string
	identity   Identity
	expiresAt  time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the clock used for credential expiry
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(log logr.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// NewStore creates a logged-out Store backed by backend. Call Hydrate to
// restore a persisted session.
func NewStore(backend CredentialStore, opts ...StoreOption) *Store {
	if backend == nil {
		backend = NewMemoryStore()
	}
	s := &Store{
		backend: backend,
		now:     time.Now,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithName("session")
	return s
}

// Hydrate restores the session from durable storage. Missing, corrupt or
// expired content leaves the store logged out and is wiped; it is never an error.
func (s *Store) Hydrate(ctx context.Context) {
	rec, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Info("discarding unreadable stored session", "error", err.Error())
			s.clearBackend(ctx)
		}
		return
	}

	if !rec.valid() {
		s.log.Info("discarding incomplete stored session")
		s.clearBackend(ctx)
		return
	}

	expiresAt := credentialExpiry(rec.Credential)
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		s.log.Info("stored credential has expired", "expiredAt", expiresAt)
		s.clearBackend(ctx)
		return
	}

	s.mu.Lock()
	s.credential = rec.Credential
	s.identity = rec.Identity
	s.expiresAt = expiresAt
	s.mu.Unlock()

	s.log.V(1).Info("session restored", "user", rec.Identity.UserID, "role", rec.Identity.Role)
}

// Login stores the credential durably and marks the identity as authenticated
func (s *Store) Login(ctx context.Context, identity Identity, credential string) error {
	if credential == "" || identity.UserID == "" || !identity.Role.Valid() {
		return apperrors.New(apperrors.ErrCodeSessionStore, "login response is missing a credential or identity", nil)
	}

	rec := &Record{Credential: credential, Identity: identity, StoredAt: s.now()}
	if err := s.backend.Save(ctx, rec); err != nil {
		return apperrors.New(apperrors.ErrCodeSessionStore, "failed to persist session", err)
	}

	s.mu.Lock()
	s.credential = credential
	s.identity = identity
	s.expiresAt = credentialExpiry(credential)
	s.mu.Unlock()

	s.log.Info("logged in", "user", identity.UserID, "role", identity.Role)
	return nil
}

// Logout clears the durable credential and the in-memory identity. Calling it
// again is a no-op.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	wasAuthenticated := s.credential != ""
	s.credential = ""
	s.identity = Identity{}
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	s.clearBackend(ctx)
	s.log.Info("logged out")
}

// Credential returns the current credential, or "", false when there is none
// or it has expired.
func (s *Store) Credential() (string, bool) {
	sess, credential := s.snapshot()
	if !sess.IsAuthenticated {
		return "", false
	}
	return credential, true
}

// Token returns the credential or "" and is suitable as an api token func
func (s *Store) Token() string {
	credential, _ := s.Credential()
	return credential
}

// Current returns the session state
func (s *Store) Current() Session {
	sess, _ := s.snapshot()
	return sess
}

func (s *Store) snapshot() (Session, string) {
	s.mu.RLock()
	credential, identity, expiresAt := s.credential, s.identity, s.expiresAt
	s.mu.RUnlock()

	if credential == "" {
		return Session{}, ""
	}
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		s.expire(credential)
		return Session{}, ""
	}
	return Session{Identity: identity, IsAuthenticated: true}, credential
}

// expire logs out if credential is still the one held
func (s *Store) expire(credential string) {
	s.mu.Lock()
	if s.credential != credential {
		s.mu.Unlock()
		return
	}
	s.credential = ""
	s.identity = Identity{}
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.clearBackend(context.Background())
	s.log.Info("credential expired")
}

func (s *Store) clearBackend(ctx context.Context) {
	if err := s.backend.Clear(ctx); err != nil {
		s.log.Error(err, "failed to clear stored session")
	}
}

// Close releases the durable store
func (s *Store) Close() error {
	return s.backend.Close()
}

// credentialExpiry returns the exp claim of a JWT credential, or the zero time
// for opaque credentials and JWTs without one. The signature is not checked;
// only the server can do that.
func credentialExpiry(credential string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func roleOf(s string) api.Role {
	return api.Role(s)
}
