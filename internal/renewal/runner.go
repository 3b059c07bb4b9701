// Package renewal sequences one certificate renewal run: issue, encode,
// archive, publish. Each stage short-circuits the run on failure.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/O-tero/xc-cert-manager/internal/artifact"
	"github.com/O-tero/xc-cert-manager/internal/config"
	"github.com/O-tero/xc-cert-manager/internal/issuer"
	"github.com/O-tero/xc-cert-manager/internal/xc"
)

// ErrTokenNotSet reports a missing XC_TOKEN environment variable.
var ErrTokenNotSet = errors.New("environment variable XC_TOKEN is not set")

// Publisher upserts the encoded artifact on the remote API.
type Publisher interface {
	Publish(ctx context.Context, identity xc.Identity, art artifact.Encoded, token string) (xc.Outcome, error)
}

// Runner holds everything one renewal run needs. No state survives a run;
// every invocation is independent and the caller serializes runs per domain.
type Runner struct {
	config    *config.Config
	env       config.Env
	issuer    issuer.Issuer
	publisher Publisher
	logger    zerolog.Logger

	// WorkDir is the parent of the per-domain archive directory; empty
	// means the current working directory.
	WorkDir string
}

// NewRunner creates a runner over the given collaborators.
func NewRunner(cfg *config.Config, env config.Env, iss issuer.Issuer, pub Publisher, logger zerolog.Logger) *Runner {
	return &Runner{
		config:    cfg,
		env:       env,
		issuer:    iss,
		publisher: pub,
		logger:    logger,
	}
}

// Run executes the renewal pipeline and returns the publish outcome. The
// first failing stage aborts the run; in particular no network call to the
// publisher happens after a failed or incomplete issuance.
func (r *Runner) Run(ctx context.Context) (xc.Outcome, error) {
	domain := r.config.Domain

	r.logger.Info().Str("domain", domain).Str("stage", "issue").Msg("starting certificate issuance")
	if err := r.issuer.IssueOrRenew(ctx, domain); err != nil {
		r.logger.Error().Str("domain", domain).Str("stage", "issue").Err(err).Msg("issuance failed")
		return xc.OutcomeFailed, fmt.Errorf("issuance failed for %s: %w", domain, err)
	}

	certPath := r.config.CertPath()
	keyPath := r.config.KeyPath()

	r.logger.Info().Str("domain", domain).Str("stage", "encode").Msg("encoding certificate artifacts")
	encoded, err := artifact.Encode(certPath, keyPath)
	if err != nil {
		r.logger.Error().Str("domain", domain).Str("stage", "encode").Err(err).Msg("encoding failed")
		return xc.OutcomeFailed, fmt.Errorf("encoding failed for %s: %w", domain, err)
	}

	archiveDir := filepath.Join(r.WorkDir, domain)
	r.logger.Info().Str("domain", domain).Str("stage", "archive").Str("dir", archiveDir).Msg("archiving certificate copy")
	if err := artifact.Archive(certPath, keyPath, archiveDir); err != nil {
		r.logger.Error().Str("domain", domain).Str("stage", "archive").Err(err).Msg("archival copy failed")
		return xc.OutcomeFailed, fmt.Errorf("archival copy failed for %s: %w", domain, err)
	}

	if r.env.Token == "" {
		r.logger.Error().Str("domain", domain).Str("stage", "publish").Msg("XC_TOKEN is not set")
		return xc.OutcomeFailed, ErrTokenNotSet
	}

	identity := xc.Identity{
		TenantName: r.config.TenantName,
		Namespace:  r.config.Namespace,
		CertName:   r.config.CertName,
	}

	r.logger.Info().Str("domain", domain).Str("stage", "publish").Str("cert_name", identity.CertName).Msg("publishing certificate")
	outcome, err := r.publisher.Publish(ctx, identity, encoded, r.env.Token)
	if err != nil {
		r.logger.Error().Str("domain", domain).Str("stage", "publish").Err(err).Msg("publish failed")
		return outcome, fmt.Errorf("publish failed for %s: %w", domain, err)
	}

	r.logger.Info().Str("domain", domain).Str("outcome", outcome.String()).Msg("renewal run complete")
	return outcome, nil
}
