// Package artifact turns the issued certificate and key files into the
// transport encoding the certificate API expects, and keeps a local archival
// copy per domain.
package artifact

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	certFileName = "cert.pem"
	keyFileName  = "privkey.pem"
)

// ErrArtifactMissing reports a certificate or key file that is absent or
// zero bytes long. An empty file is treated the same as a missing one so an
// empty field is never published.
var ErrArtifactMissing = errors.New("certificate artifact missing or empty")

// Encoded is the Base64 form of a certificate/key pair.
type Encoded struct {
	Certificate string
	PrivateKey  string
}

// Encode reads both files and returns their standard (unwrapped) Base64
// encoding. The transform is pure: the same input bytes always produce the
// same encoded text.
func Encode(certPath, keyPath string) (Encoded, error) {
	cert, err := encodeFile(certPath)
	if err != nil {
		return Encoded{}, err
	}
	key, err := encodeFile(keyPath)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Certificate: cert, PrivateKey: key}, nil
}

func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrArtifactMissing, path)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Archive copies the certificate and key into destDir, creating it if
// absent and overwriting prior contents. The key copy keeps restrictive
// permissions.
func Archive(certPath, keyPath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", destDir, err)
	}

	if err := copyFile(certPath, filepath.Join(destDir, certFileName), 0644); err != nil {
		return err
	}
	if err := copyFile(keyPath, filepath.Join(destDir, keyFileName), 0600); err != nil {
		return err
	}

	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return nil
}
