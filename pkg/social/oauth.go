package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthConfig describes a standard delegated-auth provider endpoint set.
type OAuthConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURI  string
	Scopes       []string
}

// Validate checks the configuration is complete enough to run a flow.
func (c OAuthConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("client credentials are required for provider %s", c.Name)
	}
	for _, u := range []string{c.AuthURL, c.TokenURL, c.UserInfoURL} {
		if u == "" {
			return fmt.Errorf("endpoint URLs are required for provider %s", c.Name)
		}
		if _, err := url.Parse(u); err != nil {
			return fmt.Errorf("invalid endpoint URL for provider %s: %w", c.Name, err)
		}
	}
	return nil
}

// OAuthProvider implements the redirect + code-exchange flow against a
// configured endpoint set.
type OAuthProvider struct {
	config OAuthConfig
	client *http.Client
}

func NewOAuthProvider(config OAuthConfig) (*OAuthProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "profile", "email"}
	}
	return &OAuthProvider{
		config: config,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (p *OAuthProvider) Name() string {
	return p.config.Name
}

// AuthURL builds the authorization redirect URL carrying the opaque state.
func (p *OAuthProvider) AuthURL(state string) (string, error) {
	authURL, err := url.Parse(p.config.AuthURL)
	if err != nil {
		return "", fmt.Errorf("invalid auth URL: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", p.config.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", p.config.RedirectURI)
	params.Set("state", state)
	params.Set("scope", strings.Join(p.config.Scopes, " "))

	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IDToken     string `json:"id_token,omitempty"`
}

type userInfoResponse struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Exchange redeems the authorization code for an access token and fetches
// the provider's user info, normalized into an Identity.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.config.ClientID)
	form.Set("client_secret", p.config.ClientSecret)
	form.Set("redirect_uri", p.config.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Identity{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build user info request: %w", err)
	}
	infoReq.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	infoResp, err := p.client.Do(infoReq)
	if err != nil {
		return Identity{}, fmt.Errorf("user info fetch failed: %w", err)
	}
	defer infoResp.Body.Close()
	if infoResp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("user info fetch failed with status %d", infoResp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(infoResp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("failed to decode user info: %w", err)
	}

	externalID := info.Sub
	if externalID == "" {
		externalID = info.ID
	}
	if externalID == "" {
		return Identity{}, fmt.Errorf("provider %s returned no subject identifier", p.config.Name)
	}

	return Identity{
		Provider:   p.config.Name,
		ExternalID: externalID,
		Name:       info.Name,
		Email:      info.Email,
		AvatarURL:  info.Picture,
	}, nil
}
