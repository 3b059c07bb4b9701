// Package issuer obtains a certificate and private key for a domain and
// leaves them at <root>/<domain>/cert.pem and <root>/<domain>/privkey.pem.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	certFileName = "cert.pem"
	keyFileName  = "privkey.pem"
)

// ErrNoArtifact reports that issuance reported success but the expected
// certificate or key file is absent or empty.
var ErrNoArtifact = errors.New("issuance produced no certificate artifact")

// Issuer obtains or renews the certificate for a domain. On success the
// certificate and private key exist under the issuance root.
type Issuer interface {
	IssueOrRenew(ctx context.Context, domain string) error
}

// CertPath returns the expected certificate location for a domain.
func CertPath(root, domain string) string {
	return filepath.Join(root, domain, certFileName)
}

// KeyPath returns the expected private key location for a domain.
func KeyPath(root, domain string) string {
	return filepath.Join(root, domain, keyFileName)
}

// verifyArtifacts checks that issuance actually produced both files.
func verifyArtifacts(root, domain string) error {
	for _, path := range []string{CertPath(root, domain), KeyPath(root, domain)} {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNoArtifact, path)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%w: %s is empty", ErrNoArtifact, path)
		}
	}
	return nil
}
