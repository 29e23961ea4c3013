package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Session is the process-wide authentication state for the calendar source.
// The first caller after expiry triggers re-authorization and blocks any
// concurrent callers until a token is obtained or the flow fails.
type Session struct {
	mu        sync.Mutex
	cfg       *oauth2.Config
	tok       *oauth2.Token
	tokenFile string

	// Now is the clock used for expiry checks, replaceable in tests.
	Now func() time.Time
	// Authorize obtains a fresh token interactively. Defaults to the
	// local-listener web flow.
	Authorize func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// NewSession creates a session for the given OAuth config, persisting tokens
// at tokenFile.
func NewSession(cfg *oauth2.Config, tokenFile string) *Session {
	return &Session{
		cfg:       cfg,
		tokenFile: tokenFile,
		Now:       time.Now,
		Authorize: getTokenFromWeb,
	}
}

// Token returns a usable token, loading the persisted one, refreshing, or
// running the authorization flow as needed.
func (s *Session) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usable(s.tok) {
		return s.tok, nil
	}

	if s.tok == nil {
		if tok, err := tokenFromFile(s.tokenFile); err == nil && s.usable(tok) {
			s.tok = tok
			return tok, nil
		}
	}

	tok, err := s.Authorize(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("authorization flow failed: %w", err)
	}
	s.tok = tok
	if err := saveToken(s.tokenFile, tok); err != nil {
		return nil, fmt.Errorf("could not persist token: %w", err)
	}
	return tok, nil
}

// usable reports whether tok can still produce API calls: either the access
// token is unexpired relative to the session clock, or a refresh token is
// present for the oauth2 transport to use.
func (s *Session) usable(tok *oauth2.Token) bool {
	if tok == nil {
		return false
	}
	if tok.RefreshToken != "" {
		return true
	}
	return tok.AccessToken != "" && (tok.Expiry.IsZero() || tok.Expiry.After(s.Now()))
}

// Reset forgets the cached token so the next call re-authorizes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
}

// Client returns an HTTP client that authenticates requests with the session
// token, refreshing it transparently.
func (s *Session) Client(ctx context.Context) (*http.Client, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.cfg.Client(ctx, tok), nil
}
