package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned by the token source of a logged-out store.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// TokenExpiry reads the exp claim of a JWT access token without verifying
// the signature. Opaque tokens report ok=false.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// Token returns the current credentials as an oauth2 token.
func (s *Store) Token() (*oauth2.Token, error) {
	st := s.GetState()
	if !st.IsAuthenticated {
		return nil, ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := TokenExpiry(st.AccessToken); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

// TokenSource exposes the session to oauth2-aware HTTP clients. It never
// refreshes on its own; refreshes go through the client transport.
func (s *Store) TokenSource() oauth2.TokenSource {
	return storeTokenSource{s}
}

type storeTokenSource struct {
	store *Store
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	return ts.store.Token()
}
