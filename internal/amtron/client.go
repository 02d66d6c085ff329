package amtron

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to the charger's embedded web interface. The interface uses
// its own session scheme: a login token is fetched, the password is hashed
// together with it, and the returned session id is sent as the
// Authorization header on every dashboard request.
type Client struct {
	log      *slog.Logger
	baseURL  string
	username string
	password string
	client   *http.Client

	sessionID string
}

func NewClient(log *slog.Logger, host, username, password string, timeout time.Duration) *Client {
	return &Client{
		log:      log,
		baseURL:  fmt.Sprintf("http://%s", host),
		username: username,
		password: password,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Fetch retrieves the raw dashboard payload, logging in first when no
// session is held and re-authenticating once if the session expired. It
// never retries failed transport; that is the poll scheduler's call.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	if c.sessionID == "" {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	body, expired, err := c.fetchDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if expired {
		c.log.Debug("session expired, re-authenticating")
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		body, expired, err = c.fetchDashboard(ctx)
		if err != nil {
			return nil, err
		}
		if expired {
			c.sessionID = ""
			return nil, &FetchError{
				Kind: FetchAuthFailure,
				Err:  errors.New("session rejected immediately after login"),
			}
		}
	}

	return body, nil
}

func (c *Client) fetchDashboard(ctx context.Context) (body []byte, expired bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/dashboard.json", nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create dashboard request: %w", err)
	}
	req.Header.Set("Authorization", c.sessionID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, classifyFetchErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.sessionID = ""
		return nil, false, &FetchError{
			Kind: FetchAuthFailure,
			Err:  fmt.Errorf("dashboard request rejected with status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, false, &FetchError{
			Kind: FetchUnreachable,
			Err:  fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, classifyFetchErr(err)
	}

	// The firmware answers 200 with {"logged_in": false} when the session
	// has expired instead of an auth status code.
	var session struct {
		LoggedIn *bool `json:"logged_in"`
	}
	if json.Unmarshal(body, &session) == nil && session.LoggedIn != nil && !*session.LoggedIn {
		return nil, true, nil
	}

	return body, false, nil
}

func (c *Client) login(ctx context.Context) error {
	token, err := c.loginToken(ctx)
	if err != nil {
		return err
	}

	h := sha256.New()
	h.Write([]byte(c.password))
	h.Write([]byte(token))
	passwordHash := hex.EncodeToString(h.Sum(nil))

	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": passwordHash,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/json/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyFetchErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{
			Kind: FetchAuthFailure,
			Err:  fmt.Errorf("login rejected with status %d", resp.StatusCode),
		}
	}

	var auth struct {
		LoggedIn        bool `json:"logged_in"`
		ChangeDefaultPW bool `json:"change_default_pw"`
		SetMasterRFID   bool `json:"set_master_rfid"`
		Session         struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return &FetchError{
			Kind: FetchAuthFailure,
			Err:  fmt.Errorf("failed to decode login response: %w", err),
		}
	}

	// A charger still waiting for its initial setup lets the login through
	// but refuses everything else until the flags are cleared on-site.
	if auth.ChangeDefaultPW || auth.SetMasterRFID {
		c.sessionID = ""
		return &FetchError{
			Kind: FetchAuthFailure,
			Err:  errors.New("charger requires initial configuration before metrics can be scraped"),
		}
	}
	if !auth.LoggedIn {
		c.sessionID = ""
		return &FetchError{
			Kind: FetchAuthFailure,
			Err:  errors.New("login rejected, check username and password"),
		}
	}

	c.sessionID = auth.Session.ID
	c.log.Debug("logged in to charger web interface")
	return nil
}

func (c *Client) loginToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/login", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyFetchErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{
			Kind: FetchUnreachable,
			Err:  fmt.Errorf("token request answered with status %d", resp.StatusCode),
		}
	}

	var tok struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", &FetchError{
			Kind: FetchAuthFailure,
			Err:  fmt.Errorf("failed to decode token response: %w", err),
		}
	}

	return tok.Token, nil
}
