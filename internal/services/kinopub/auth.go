package kinopub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultOAuthURL = "https://api.service-kp.com/oauth/device"

	// Access tokens within this buffer of expiry are treated as expired
	tokenExpiryBuffer = 5 * time.Minute

	// The service sometimes reports very short polling intervals; never
	// poll faster than this
	minPollInterval = 2500 * time.Millisecond

	// ~5 minutes at the minimum interval
	maxPollAttempts = 120
)

// TokenStore defines the interface for storing and retrieving tokens
type TokenStore interface {
	GetToken() (*Token, error)
	SaveToken(token *Token) error
}

// Token represents the OAuth token pair. AccessTokenExpire is a unix
// timestamp in milliseconds, matching the token file layout.
type Token struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	AccessTokenExpire int64  `json:"accessTokenExpire"`
}

// ExpiresAt returns the access token expiry as a time
func (t *Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.AccessTokenExpire)
}

// FileTokenStore implements TokenStore using a JSON file
type FileTokenStore struct {
	filepath string
}

// NewFileTokenStore creates a new file-based token store
func NewFileTokenStore(filepath string) *FileTokenStore {
	return &FileTokenStore{filepath: filepath}
}

// GetToken retrieves the token from the file
func (s *FileTokenStore) GetToken() (*Token, error) {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("token file not found")
		}
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}

	return &token, nil
}

// SaveToken saves the token to the file
func (s *FileTokenStore) SaveToken(token *Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.filepath, data, 0600)
}

// authState is the device-flow lifecycle state
type authState int

const (
	stateUnauthenticated authState = iota
	statePendingApproval
	stateAuthenticated
	stateExpired
)

// Session owns the token lifecycle: device-flow authorization, polling and
// refresh. The clock and sleep functions are injectable so polling is
// testable without wall time.
type Session struct {
	clientID     string
	clientSecret string
	endpoint     string
	store        TokenStore
	httpClient   *http.Client
	logger       *logrus.Logger

	state authState
	now   func() time.Time
	sleep func(time.Duration)
}

// NewSession creates a session backed by the given token store
func NewSession(clientID, clientSecret string, store TokenStore, logger *logrus.Logger) *Session {
	return &Session{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     defaultOAuthURL,
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		state:        stateUnauthenticated,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// IsAuthenticated reports whether a usable token pair exists. Pure check,
// no network: the token must outlive now plus the expiry buffer.
func (s *Session) IsAuthenticated() bool {
	token, err := s.store.GetToken()
	if err != nil || token.AccessToken == "" {
		return false
	}
	return token.ExpiresAt().After(s.now().Add(tokenExpiryBuffer))
}

// deviceCodeResponse is the payload of a grant_type=device_code request
type deviceCodeResponse struct {
	Code            string `json:"code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	Interval        int    `json:"interval"`
	ExpiresIn       int    `json:"expires_in"`
}

// tokenResponse is the payload of device_token and refresh_token grants.
// ErrorCode is set instead of the token fields while approval is pending.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ErrorCode    string `json:"error"`
}

// Authenticate performs the device authorization flow: request a device
// code, show it to the user, poll the token endpoint until approval
func (s *Session) Authenticate(ctx context.Context) error {
	// Step 1: Request device code
	var deviceResp deviceCodeResponse
	if err := s.oauthRequest(ctx, url.Values{
		"grant_type":    {"device_code"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
	}, &deviceResp); err != nil {
		return fmt.Errorf("failed to get device code: %w", err)
	}

	// Step 2: Display user code and URL
	s.state = statePendingApproval
	s.logger.Infof("Please visit %s and enter code: %s", deviceResp.VerificationURI, deviceResp.UserCode)
	fmt.Printf("\nPlease visit %s and enter code: %s\n\n", deviceResp.VerificationURI, deviceResp.UserCode)

	// Step 3: Poll for token
	interval := time.Duration(deviceResp.Interval) * time.Second
	if interval < minPollInterval {
		interval = minPollInterval
	}

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			s.state = stateUnauthenticated
			return ctx.Err()
		default:
		}

		s.sleep(interval)

		var tokenResp tokenResponse
		err := s.oauthRequest(ctx, url.Values{
			"grant_type":    {"device_token"},
			"client_id":     {s.clientID},
			"client_secret": {s.clientSecret},
			"code":          {deviceResp.Code},
		}, &tokenResp)
		if err != nil {
			s.state = stateUnauthenticated
			return fmt.Errorf("token polling failed: %w", err)
		}

		switch tokenResp.ErrorCode {
		case "":
			// Success! Save token
			if err := s.saveTokenResponse(&tokenResp); err != nil {
				s.state = stateUnauthenticated
				return fmt.Errorf("failed to save token: %w", err)
			}
			s.state = stateAuthenticated
			s.logger.Info("Authentication successful")
			return nil
		case "authorization_pending":
			s.logger.Debug("Waiting for user authorization...")
			continue
		case "code_expired":
			s.state = stateUnauthenticated
			return &AuthError{Reason: "device code expired before approval"}
		default:
			s.state = stateUnauthenticated
			return &AuthError{Reason: fmt.Sprintf("authorization rejected: %s", tokenResp.ErrorCode)}
		}
	}

	s.state = stateUnauthenticated
	return &AuthError{Reason: "authorization timed out"}
}

// AccessToken returns a valid access token, refreshing at most once when
// the stored one is expired. An AuthError means the caller must re-run
// Authenticate.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	token, err := s.store.GetToken()
	if err != nil {
		s.state = stateUnauthenticated
		return "", &AuthError{Reason: "no stored token", Err: err}
	}

	if token.ExpiresAt().After(s.now().Add(tokenExpiryBuffer)) {
		s.state = stateAuthenticated
		return token.AccessToken, nil
	}

	s.state = stateExpired
	s.logger.Info("Access token expired, refreshing")
	if err := s.Refresh(ctx); err != nil {
		s.state = stateUnauthenticated
		return "", &AuthError{Reason: "token refresh failed", Err: err}
	}

	token, err = s.store.GetToken()
	if err != nil {
		s.state = stateUnauthenticated
		return "", &AuthError{Reason: "refreshed token unreadable", Err: err}
	}
	s.state = stateAuthenticated
	return token.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new token pair
func (s *Session) Refresh(ctx context.Context) error {
	token, err := s.store.GetToken()
	if err != nil {
		return fmt.Errorf("no token to refresh: %w", err)
	}

	var tokenResp tokenResponse
	if err := s.oauthRequest(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"refresh_token": {token.RefreshToken},
	}, &tokenResp); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if tokenResp.ErrorCode != "" {
		return fmt.Errorf("refresh rejected: %s", tokenResp.ErrorCode)
	}

	if err := s.saveTokenResponse(&tokenResp); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	s.logger.Info("Token refreshed successfully")
	return nil
}

// RefreshSession is the health-check entry point: attempt a refresh and
// report success, never error
func (s *Session) RefreshSession(ctx context.Context) bool {
	if err := s.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("Session refresh failed")
		return false
	}
	s.state = stateAuthenticated
	return true
}

// saveTokenResponse persists a token pair, computing the ms expiry instant
func (s *Session) saveTokenResponse(resp *tokenResponse) error {
	return s.store.SaveToken(&Token{
		AccessToken:       resp.AccessToken,
		RefreshToken:      resp.RefreshToken,
		AccessTokenExpire: s.now().UnixMilli() + resp.ExpiresIn*1000,
	})
}

// oauthRequest posts form values to the token endpoint and decodes the
// response. OAuth errors arrive with non-2xx statuses but a JSON body, so
// the body is decoded regardless of status when it looks like JSON.
func (s *Session) oauthRequest(ctx context.Context, params url.Values, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	if err := json.Unmarshal(body, result); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return &APIError{Body: string(body)}
	}

	return nil
}
