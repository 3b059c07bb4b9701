package issuer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/O-tero/xc-cert-manager/internal/config"
)

// CertbotRunner obtains certificates by invoking the certbot binary in
// standalone mode. The binary either reuses a still-valid certificate or
// performs a fresh ACME order; both leave the artifacts under the issuance
// root.
type CertbotRunner struct {
	// Binary is the certbot executable; defaults to "certbot" from PATH.
	Binary     string
	ACMEServer string
	Email      string
	// CABundle, when set, is exported as REQUESTS_CA_BUNDLE so certbot
	// trusts a private ACME CA. Empty means the system trust store.
	CABundle string
	Root     string

	logger zerolog.Logger
}

// NewCertbotRunner builds a runner from the loaded configuration and the
// optional CA bundle override.
func NewCertbotRunner(cfg *config.Config, caBundle string, logger zerolog.Logger) *CertbotRunner {
	return &CertbotRunner{
		Binary:     "certbot",
		ACMEServer: cfg.ACMEServer,
		Email:      cfg.ACMEEmail,
		CABundle:   caBundle,
		Root:       cfg.IssuanceRoot,
		logger:     logger,
	}
}

// IssueOrRenew runs certbot for the domain and verifies the expected
// artifacts exist afterwards. A failed run or missing artifacts abort the
// renewal before any network call to the publisher.
func (r *CertbotRunner) IssueOrRenew(ctx context.Context, domain string) error {
	args := []string{
		"certonly",
		"--standalone",
		"--non-interactive",
		"--agree-tos",
		"--server", r.ACMEServer,
		"-d", domain,
	}
	if r.Email != "" {
		args = append(args, "-m", r.Email)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Env = os.Environ()
	if r.CABundle != "" {
		cmd.Env = append(cmd.Env, "REQUESTS_CA_BUNDLE="+r.CABundle)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Info().Str("domain", domain).Str("server", r.ACMEServer).Msg("running certbot")
	if err := cmd.Run(); err != nil {
		r.logger.Error().Str("domain", domain).Err(err).Str("output", output.String()).Msg("certbot failed")
		return fmt.Errorf("certbot failed for %s: %w: %s", domain, err, output.String())
	}

	if err := verifyArtifacts(r.Root, domain); err != nil {
		return err
	}

	r.logger.Info().Str("domain", domain).Msg("certificate obtained with certbot")
	return nil
}
