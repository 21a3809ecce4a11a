package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/config"
	"github.com/dmorozov-pr/identity-service/internal/domain"
)

// HTTPProvider talks to an external identity provider's admin API for a
// single realm using client credentials. The provider's protocol is treated
// as a black box reachable over HTTP.
type HTTPProvider struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	client       *http.Client
}

// NewHTTPProvider creates a realm client from configuration.
func NewHTTPProvider(cfg config.IdentityConfig) *HTTPProvider {
	timeout := cfg.Timeout.Duration
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPProvider{
		baseURL:      cfg.BaseURL,
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: timeout},
	}
}

type externalUser struct {
	ID              string `json:"id,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Enabled         bool   `json:"enabled"`
	IsEmailVerified bool   `json:"email_verified"`
}

// CreateUser registers the user in the external realm and returns the
// provider-assigned id.
func (p *HTTPProvider) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	payload := externalUser{
		Email:           user.EmailOrEmpty(),
		Phone:           user.PhoneOrEmpty(),
		Enabled:         user.IsActive,
		IsEmailVerified: user.IsEmailVerified,
	}

	var created externalUser
	if err := p.do(ctx, http.MethodPost, p.realmPath("/users"), payload, &created); err != nil {
		return "", err
	}

	return created.ID, nil
}

// UpdateUser pushes the current local user state to the external realm.
func (p *HTTPProvider) UpdateUser(ctx context.Context, user *domain.User) error {
	if user.ExternalID == nil {
		return fmt.Errorf("user %s has no external id", user.ID)
	}

	payload := externalUser{
		Email:           user.EmailOrEmpty(),
		Phone:           user.PhoneOrEmpty(),
		Enabled:         user.IsActive,
		IsEmailVerified: user.IsEmailVerified,
	}

	return p.do(ctx, http.MethodPut, p.realmPath("/users/"+*user.ExternalID), payload, nil)
}

// AssignRole mirrors a role grant into the external realm.
func (p *HTTPProvider) AssignRole(ctx context.Context, externalID string, role domain.Role) error {
	payload := map[string]string{"role": string(role)}
	return p.do(ctx, http.MethodPost, p.realmPath("/users/"+externalID+"/roles"), payload, nil)
}

// Sync creates the external user if missing, otherwise updates it.
func (p *HTTPProvider) Sync(ctx context.Context, user *domain.User) error {
	if user.ExternalID == nil {
		externalID, err := p.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		user.ExternalID = &externalID
		return nil
	}
	return p.UpdateUser(ctx, user)
}

func (p *HTTPProvider) realmPath(suffix string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", p.baseURL, p.realm, suffix)
}

func (p *HTTPProvider) do(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
