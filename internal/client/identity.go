package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
)

// IdentityClient resolves bearer tokens to caller context against the
// platform identity service. Identity is an external collaborator; this
// service only consumes {id, role, department}.
type IdentityClient struct {
	baseURL string
	http    *http.Client
}

// NewIdentityClient creates a client for the identity service.
func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IdentityClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Resolve exchanges a bearer token for the caller context.
func (c *IdentityClient) Resolve(ctx context.Context, token string) (domain.Caller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/identity/me", nil)
	if err != nil {
		return domain.Caller{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to build identity request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Caller{}, errors.Wrap(err, errors.ErrCodeInternal, "identity service unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Caller{}, errors.Forbidden("invalid or expired token")
	default:
		return domain.Caller{}, errors.Newf(errors.ErrCodeInternal,
			"identity service returned %d", resp.StatusCode)
	}

	var caller domain.Caller
	if err := json.NewDecoder(resp.Body).Decode(&caller); err != nil {
		return domain.Caller{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode identity response")
	}
	if caller.ID == "" || caller.Role == "" {
		return domain.Caller{}, errors.Forbidden("identity service returned an incomplete caller context")
	}
	return caller, nil
}

// Healthy pings the identity service.
func (c *IdentityClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity health returned %d", resp.StatusCode)
	}
	return nil
}
