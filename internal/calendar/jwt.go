package calendar

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	calendarScope      = "https://www.googleapis.com/auth/calendar"
	assertionLifetime  = time.Hour
)

// TokenSource mints and caches OAuth access tokens for a calendar service
// account using the signed-JWT bearer flow.
type TokenSource struct {
	issuer        string
	privateKey    *rsa.PrivateKey
	tokenEndpoint string
	cache         TokenCache
	httpClient    *http.Client
	now           func() time.Time
}

// NewTokenSource loads the RS256 private key from keyPath. A nil cache
// falls back to in-memory caching.
func NewTokenSource(issuer, keyPath, tokenEndpoint string, cache TokenCache) (*TokenSource, error) {
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("calendar: read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("calendar: parse private key: %w", err)
	}
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	return &TokenSource{
		issuer:        issuer,
		privateKey:    key,
		tokenEndpoint: tokenEndpoint,
		cache:         cache,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		now:           time.Now,
	}, nil
}

// AccessToken returns a cached token or exchanges a fresh assertion.
func (s *TokenSource) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.cache.Get(ctx, s.issuer)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, ErrTokenNotCached) {
		return "", err
	}
	return s.exchange(ctx)
}

func (s *TokenSource) exchange(ctx context.Context) (string, error) {
	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("calendar: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("calendar: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return "", fmt.Errorf("calendar: token exchange status %d: %s", resp.StatusCode, msg)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("calendar: unmarshal token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("calendar: token exchange returned empty access token")
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if err := s.cache.Put(ctx, s.issuer, payload.AccessToken, lifetime); err != nil {
		// Caching is an optimization, the token itself is good.
		return payload.AccessToken, nil
	}
	return payload.AccessToken, nil
}

func (s *TokenSource) signAssertion() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.issuer,
		"scope": calendarScope,
		"aud":   s.tokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("calendar: sign assertion: %w", err)
	}
	return signed, nil
}
