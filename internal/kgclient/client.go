package kgclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the game's ASMX web services. Responses usually arrive as
// {"d": "<stringified json>"}; every call normalizes that away before the
// caller sees the payload.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// Config holds the endpoints and headers the game API expects.
type Config struct {
	BaseURL     string
	WorldID     string
	UserAgent   string
	LoginURL    string // optional override
	RankingsURL string // optional override
	Timeout     time.Duration
}

// DefaultConfig returns the live game endpoints.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://www.kingdomgame.net",
		WorldID:   "1",
		UserAgent: "recon-hub/1.0 (settlements)",
		Timeout:   30 * time.Second,
	}
}

// New constructs a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.WorldID == "" {
		cfg.WorldID = "1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// Session is the credential triple every authenticated game call carries.
type Session struct {
	AccountID int64
	Token     string
	KingdomID int64
}

func (s Session) basePayload() map[string]any {
	return map[string]any{
		"accountId": fmt.Sprintf("%d", s.AccountID),
		"token":     s.Token,
		"kingdomId": s.KingdomID,
	}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + path
}

func (c *Client) headers(referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Content-Type", "application/json")
	h.Set("Origin", strings.TrimSuffix(c.cfg.BaseURL, "/"))
	h.Set("Referer", strings.TrimSuffix(c.cfg.BaseURL, "/")+referer)
	h.Set("World-Id", c.cfg.WorldID)
	if c.cfg.UserAgent != "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	return h
}

// postJSON posts a payload and returns the decoded, d-unwrapped response.
func (c *Client) postJSON(ctx context.Context, url, referer string, payload any) (map[string]any, error) {
	return c.postJSONToken(ctx, url, referer, "", payload)
}

// postJSONToken is postJSON with an optional session token header, which the
// rankings endpoints accept and the rest ignore.
func (c *Client) postJSONToken(ctx context.Context, url, referer, token string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = c.headers(referer)
	if token != "" {
		req.Header.Set("Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.ReplaceAll(strings.TrimSpace(string(raw)), "\n", " ")
		if len(snippet) > 220 {
			snippet = snippet[:220]
		}
		return nil, fmt.Errorf("HTTP %d for %s body=%s", resp.StatusCode, url, snippet)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", url, err)
	}
	return unwrapD(decoded), nil
}

// LoginResult carries the credentials the login endpoint issues.
type LoginResult struct {
	AccountID int64
	Token     string
}

// Login exchanges game credentials for an account token. The password is
// used for this one exchange and never persisted.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	url := c.cfg.LoginURL
	if url == "" {
		url = c.endpoint("/WebService/User.asmx/Login")
	}

	parsed, err := c.postJSON(ctx, url, "/login", map[string]any{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("game login: %w", err)
	}

	if rv, ok := parsed["ReturnValue"]; ok {
		if n, isNum := asInt64(rv); isNum && n != 1 {
			msg := asString(parsed["ReturnString"])
			if msg == "" {
				msg = "game login failed"
			}
			return LoginResult{}, fmt.Errorf("game login rejected: %s", msg)
		}
	}

	accountID, ok := asInt64(parsed["accountId"])
	token := strings.TrimSpace(asString(parsed["token"]))
	if !ok || token == "" {
		return LoginResult{}, fmt.Errorf("game login response missing accountId/token")
	}
	return LoginResult{AccountID: accountID, Token: token}, nil
}

// DiscoverKingdomID probes the kingdom endpoints for the account's kingdom
// when the user did not supply one. Returns (0, false) when none of the
// candidate endpoints yield an id.
func (c *Client) DiscoverKingdomID(ctx context.Context, accountID int64, token string) (int64, bool) {
	payload := map[string]any{"accountId": fmt.Sprintf("%d", accountID), "token": token}
	for _, path := range []string{
		"/WebService/Kingdoms.asmx/GetKingdomDetails",
		"/WebService/Kingdoms.asmx/GetKingdoms",
	} {
		parsed, err := c.postJSON(ctx, c.endpoint(path), "/settlements", payload)
		if err != nil {
			c.logger.Debug("kingdom discovery attempt failed", "path", path, "error", err)
			continue
		}
		if id, ok := asInt64(parsed["id"]); ok {
			return id, true
		}
		if rows, ok := parsed["kingdoms"].([]any); ok {
			for _, row := range rows {
				if m, isMap := row.(map[string]any); isMap {
					if id, ok := asInt64(m["id"]); ok {
						return id, true
					}
				}
			}
		}
	}
	return 0, false
}
