package issuer

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"github.com/rs/zerolog"

	"github.com/O-tero/xc-cert-manager/internal/config"
)

type acmeUser struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string {
	return u.Email
}

func (u *acmeUser) GetRegistration() *registration.Resource {
	return u.Registration
}

func (u *acmeUser) GetPrivateKey() crypto.PrivateKey {
	return u.key
}

// LegoIssuer performs ACME issuance in-process with the lego library instead
// of shelling out to certbot. It answers the HTTP-01 challenge on the
// configured port and writes the artifacts to the same layout certbot uses.
type LegoIssuer struct {
	caDirURL string
	email    string
	keyType  string
	httpPort int
	root     string
	logger   zerolog.Logger
}

func NewLegoIssuer(cfg *config.Config, logger zerolog.Logger) *LegoIssuer {
	return &LegoIssuer{
		caDirURL: cfg.ACMEServer,
		email:    cfg.ACMEEmail,
		keyType:  cfg.KeyType,
		httpPort: cfg.HTTPChallengePort,
		root:     cfg.IssuanceRoot,
		logger:   logger,
	}
}

// IssueOrRenew registers a fresh account, obtains a bundled certificate for
// the domain and writes cert.pem and privkey.pem under the issuance root.
func (l *LegoIssuer) IssueOrRenew(ctx context.Context, domain string) error {
	privateKey, err := generatePrivateKey(l.keyType)
	if err != nil {
		return fmt.Errorf("failed to generate account key: %w", err)
	}

	user := &acmeUser{
		Email: l.email,
		key:   privateKey,
	}

	legoConfig := lego.NewConfig(user)
	legoConfig.CADirURL = l.caDirURL
	legoConfig.Certificate.KeyType = getKeyType(l.keyType)

	client, err := lego.NewClient(legoConfig)
	if err != nil {
		return fmt.Errorf("failed to create lego client: %w", err)
	}

	err = client.Challenge.SetHTTP01Provider(http01.NewProviderServer("", strconv.Itoa(l.httpPort)))
	if err != nil {
		return fmt.Errorf("failed to set HTTP01 provider: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return fmt.Errorf("failed to register ACME account: %w", err)
	}
	user.Registration = reg

	l.logger.Info().Str("domain", domain).Str("server", l.caDirURL).Msg("requesting certificate")

	request := certificate.ObtainRequest{
		Domains: []string{domain},
		Bundle:  true,
	}
	certificates, err := client.Certificate.Obtain(request)
	if err != nil {
		l.logger.Error().Str("domain", domain).Err(err).Msg("failed to obtain certificate")
		return fmt.Errorf("failed to obtain certificate for %s: %w", domain, err)
	}

	if err := l.saveArtifacts(domain, certificates.Certificate, certificates.PrivateKey); err != nil {
		return err
	}
	if err := verifyArtifacts(l.root, domain); err != nil {
		return err
	}

	l.logger.Info().Str("domain", domain).Msg("certificate obtained with lego")
	return nil
}

func (l *LegoIssuer) saveArtifacts(domain string, cert, key []byte) error {
	dir := filepath.Join(l.root, domain)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create issuance directory: %w", err)
	}

	if err := os.WriteFile(CertPath(l.root, domain), cert, 0644); err != nil {
		return fmt.Errorf("failed to save certificate file: %w", err)
	}
	if err := os.WriteFile(KeyPath(l.root, domain), key, 0600); err != nil {
		return fmt.Errorf("failed to save private key file: %w", err)
	}

	return nil
}

// generatePrivateKey generates an account key for the configured key type.
func generatePrivateKey(keyType string) (crypto.PrivateKey, error) {
	switch keyType {
	case "RSA4096":
		return rsa.GenerateKey(rand.Reader, 4096)
	case "EC256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "EC384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	default:
		return rsa.GenerateKey(rand.Reader, 2048)
	}
}

// getKeyType converts the configured key type to certcrypto.KeyType.
func getKeyType(keyType string) certcrypto.KeyType {
	switch keyType {
	case "RSA4096":
		return certcrypto.RSA4096
	case "EC256":
		return certcrypto.EC256
	case "EC384":
		return certcrypto.EC384
	default:
		return certcrypto.RSA2048
	}
}
