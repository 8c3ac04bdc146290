package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
)

// UserProfile carries the signed-in user as returned by the backend.
type UserProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url"`
}

// UserPatch is a partial profile update; nil fields are left untouched.
type UserPatch struct {
	ID        *string `json:"id"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	User         *UserProfile
	LoggingOut   bool
}

// Store holds the process-wide auth session. While LoggingOut is set no
// refresh may be attempted and no new session may be written until the
// logout finishes or the store is force-cleared.
type Store struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *UserProfile
	loggingOut   bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		User:         cloneUser(s.user),
		LoggingOut:   s.loggingOut,
	}
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Store) User() *UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Authenticated reports whether a signed-in session exists.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && !s.loggingOut
}

func (s *Store) LoggingOut() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggingOut
}

// SetTokens stores a fresh access/refresh pair. Refused mid-logout.
func (s *Store) SetTokens(accessToken, refreshToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggingOut {
		return pkgerrors.New(pkgerrors.CodeConflict, "logout in progress")
	}
	s.accessToken = accessToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	return nil
}

// SetUser replaces the stored profile. Refused mid-logout.
func (s *Store) SetUser(user UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggingOut {
		return pkgerrors.New(pkgerrors.CodeConflict, "logout in progress")
	}
	copied := user
	s.user = &copied
	return nil
}

// MergeUser applies a partial patch onto the existing profile, as the
// refresh endpoint may return only the fields that changed.
func (s *Store) MergeUser(patch UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggingOut {
		return pkgerrors.New(pkgerrors.CodeConflict, "logout in progress")
	}
	if s.user == nil {
		s.user = &UserProfile{}
	}
	if patch.ID != nil {
		s.user.ID = *patch.ID
	}
	if patch.Name != nil {
		s.user.Name = *patch.Name
	}
	if patch.Email != nil {
		s.user.Email = *patch.Email
	}
	if patch.Phone != nil {
		s.user.Phone = *patch.Phone
	}
	if patch.AvatarURL != nil {
		s.user.AvatarURL = *patch.AvatarURL
	}
	return nil
}

// BeginLogout raises the guard flag; refresh and session writes are
// suppressed until FinishLogout or ForceClear.
func (s *Store) BeginLogout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggingOut = true
}

// FinishLogout clears the session and drops the guard flag.
func (s *Store) FinishLogout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// ForceClear wipes the session after an unrecoverable auth failure,
// returning the store to a clean logged-out state.
func (s *Store) ForceClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Store) clearLocked() {
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	s.loggingOut = false
}

// AccessClaims exposes the registered claims of the stored access token.
// The token is decoded without signature verification; the backend is the
// only party that validates it.
type AccessClaims struct {
	Subject   string
	ExpiresAt time.Time
}

func (s *Store) AccessClaims() (*AccessClaims, error) {
	token := s.AccessToken()
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "no access token")
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding access token")
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unexpected claim type")
	}
	out := &AccessClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Expired reports whether the claims are past their expiry at the given instant.
func (c *AccessClaims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return now.After(c.ExpiresAt)
}

func cloneUser(user *UserProfile) *UserProfile {
	if user == nil {
		return nil
	}
	copied := *user
	return &copied
}
