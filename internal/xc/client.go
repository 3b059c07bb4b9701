// Package xc publishes certificates to the F5 Distributed Cloud
// configuration API with an update-then-create upsert.
package xc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/O-tero/xc-cert-manager/internal/artifact"
)

// Identity addresses one certificate object on the remote API.
type Identity struct {
	TenantName string
	Namespace  string
	CertName   string
}

// Outcome is the result of a publish attempt.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeUpdated
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeCreated:
		return "created"
	default:
		return "failed"
	}
}

// PublishError carries the status code and verbatim response body of a
// failed API call.
type PublishError struct {
	StatusCode int
	Body       string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("certificate API returned status %d: %s", e.StatusCode, e.Body)
}

// Client handles communication with the XC configuration API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// TenantBaseURL returns the console endpoint for a tenant.
func TenantBaseURL(tenantName string) string {
	return fmt.Sprintf("https://%s.console.ves.volterra.io", tenantName)
}

type certificateObject struct {
	Metadata objectMetadata  `json:"metadata"`
	Spec     certificateSpec `json:"spec"`
}

type objectMetadata struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

type certificateSpec struct {
	CertificateURL      string     `json:"certificate_url"`
	PrivateKey          privateKey `json:"private_key"`
	DisableOCSPStapling struct{}   `json:"disable_ocsp_stapling"`
}

type privateKey struct {
	ClearSecretInfo clearSecretInfo `json:"clear_secret_info"`
}

type clearSecretInfo struct {
	URL string `json:"url"`
}

func newCertificateSpec(art artifact.Encoded) certificateSpec {
	return certificateSpec{
		CertificateURL: "string:///" + art.Certificate,
		PrivateKey: privateKey{
			ClearSecretInfo: clearSecretInfo{
				URL: "string:///" + art.PrivateKey,
			},
		},
	}
}

// Publish upserts the certificate object: it attempts an update first and
// falls back to creation only when the update reports 404. Any other update
// failure is terminal, so permission or validation errors never turn into
// spurious create attempts. The operation is idempotent; repeating it with
// the same identity and artifact never creates a duplicate object.
func (c *Client) Publish(ctx context.Context, identity Identity, art artifact.Encoded, token string) (Outcome, error) {
	updateURL := fmt.Sprintf("%s/api/config/namespaces/%s/certificates/%s",
		c.baseURL, identity.Namespace, identity.CertName)
	updateBody := certificateObject{
		Metadata: objectMetadata{
			Name:      identity.CertName,
			Namespace: identity.Namespace,
		},
		Spec: newCertificateSpec(art),
	}

	c.logger.Info().Str("cert_name", identity.CertName).Str("url", updateURL).Msg("updating certificate object")
	status, body, err := c.do(ctx, http.MethodPut, updateURL, updateBody, identity.TenantName, token)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("update request failed: %w", err)
	}

	if status >= 200 && status < 300 {
		c.logger.Info().Str("cert_name", identity.CertName).Int("status", status).Msg("certificate object updated")
		return OutcomeUpdated, nil
	}

	if status != http.StatusNotFound {
		c.logger.Error().Str("cert_name", identity.CertName).Int("status", status).Str("body", body).Msg("failed to update certificate object")
		return OutcomeFailed, &PublishError{StatusCode: status, Body: body}
	}

	// 404: the object does not exist yet, create it on the collection
	// endpoint with the name in the body.
	createURL := fmt.Sprintf("%s/api/config/namespaces/%s/certificates",
		c.baseURL, identity.Namespace)
	createBody := certificateObject{
		Metadata: objectMetadata{
			Name: identity.CertName,
		},
		Spec: newCertificateSpec(art),
	}

	c.logger.Info().Str("cert_name", identity.CertName).Str("url", createURL).Msg("certificate object not found, creating it")
	status, body, err = c.do(ctx, http.MethodPost, createURL, createBody, identity.TenantName, token)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("create request failed: %w", err)
	}

	if status >= 200 && status < 300 {
		c.logger.Info().Str("cert_name", identity.CertName).Int("status", status).Msg("certificate object created")
		return OutcomeCreated, nil
	}

	c.logger.Error().Str("cert_name", identity.CertName).Int("status", status).Str("body", body).Msg("failed to create certificate object")
	return OutcomeFailed, &PublishError{StatusCode: status, Body: body}
}

func (c *Client) do(ctx context.Context, method, url string, payload any, tenantName, token string) (int, string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "APIToken "+token)
	req.Header.Set("x-volterra-apigw-tenant", tenantName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to call certificate API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, string(body), nil
}
