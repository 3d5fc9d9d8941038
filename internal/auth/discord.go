package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recvault/internal/config"
)

const discordAPI = "https://discord.com/api/v10"

// oauthScopes is the only scope the service needs: a stable user identity.
const oauthScopes = "identify"

// DiscordUser is the subset of the /users/@me response the service uses.
type DiscordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// AvatarURL returns the CDN URL for the user's avatar, falling back to the
// default embed avatar when none is set.
func (u *DiscordUser) AvatarURL() string {
	if u.Avatar == "" {
		return "https://cdn.discordapp.com/embed/avatars/0.png"
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
}

// DiscordClient performs the OAuth code exchange against Discord.
type DiscordClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	baseURL      string // Overridable for tests
	httpClient   *http.Client
}

// NewDiscordClient creates an OAuth client from configuration.
func NewDiscordClient(cfg config.DiscordConfig) *DiscordClient {
	return &DiscordClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		baseURL:      discordAPI,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewDiscordClientForTest creates a client pointed at a stub server.
func NewDiscordClientForTest(cfg config.DiscordConfig, baseURL string) *DiscordClient {
	c := NewDiscordClient(cfg)
	c.baseURL = baseURL
	return c
}

// AuthURL returns the Discord authorization URL the login endpoint redirects to.
func (c *DiscordClient) AuthURL() string {
	params := url.Values{
		"client_id":     {c.clientID},
		"redirect_uri":  {c.redirectURI},
		"response_type": {"code"},
		"scope":         {oauthScopes},
	}
	return "https://discord.com/oauth2/authorize?" + params.Encode()
}

// ExchangeCode trades an authorization code for an access token.
func (c *DiscordClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	return body.AccessToken, nil
}

// FetchUser retrieves the authenticated user's identity.
func (c *DiscordClient) FetchUser(ctx context.Context, accessToken string) (*DiscordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("building user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user endpoint returned status %d", resp.StatusCode)
	}

	var user DiscordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user response missing id")
	}

	return &user, nil
}
