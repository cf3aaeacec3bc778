package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mirror/internal/models"
)

var ErrRelay = errors.New("registration relay failed")

// RegistrationRelay forwards public registrations to the admin data
// endpoint, authenticating with the shared admin secret.
type RegistrationRelay struct {
	baseURL    string
	secret     string
	source     string
	httpClient *http.Client
}

func NewRegistrationRelay(baseURL, secret string) *RegistrationRelay {
	return &RegistrationRelay{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		source:     "website",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *RegistrationRelay) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

func (c *RegistrationRelay) Relay(ctx context.Context, req models.RegistrationRequest) error {
	if strings.TrimSpace(c.baseURL) == "" {
		return fmt.Errorf("%w: admin api url is not configured", ErrRelay)
	}

	payload := models.CreateRegistrationRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    NormalizeEmail(req.Email),
		Language: req.Language,
		Source:   c.source,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/registrations", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRelay, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Admin-Secret", c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRelay, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status=%d body=%s", ErrRelay, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
