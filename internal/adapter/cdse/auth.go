package cdse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSlack refreshes tokens a little before they actually expire so an
// in-flight download never presents a stale one.
const tokenSlack = 30 * time.Second

// tokenSource fetches and caches OAuth access tokens for the download
// API. Safe for concurrent use.
type tokenSource struct {
	username   string
	password   string
	tokenURL   string
	httpClient *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSource(username, password, tokenURL string, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		username:   username,
		password:   password,
		tokenURL:   tokenURL,
		httpClient: httpClient,
	}
}

// Token returns a valid access token, fetching a fresh one when the
// cached token is missing or about to expire.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiry) {
		return ts.token, nil
	}

	form := url.Values{
		"client_id":  {"cdse-public"},
		"grant_type": {"password"},
		"username":   {ts.username},
		"password":   {ts.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("CDSE auth error: status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("CDSE auth error: empty access token")
	}

	ts.token = tr.AccessToken
	ts.expiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSlack)
	return ts.token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
