package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acme-xc.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# XC certificate settings
domain=example.internal
namespace=demo-namespace
cert_name=example-cert

tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Domain != "example.internal" {
		t.Errorf("Expected Domain to be 'example.internal', got '%s'", config.Domain)
	}
	if config.Namespace != "demo-namespace" {
		t.Errorf("Expected Namespace to be 'demo-namespace', got '%s'", config.Namespace)
	}
	if config.CertName != "example-cert" {
		t.Errorf("Expected CertName to be 'example-cert', got '%s'", config.CertName)
	}
	if config.TenantName != "my-tenant" {
		t.Errorf("Expected TenantName to be 'my-tenant', got '%s'", config.TenantName)
	}
	if config.ACMEServer != "https://acme.example.com/acme/directory" {
		t.Errorf("Expected ACMEServer to be the directory URL, got '%s'", config.ACMEServer)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
cert_name=example-cert
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Issuer != IssuerCertbot {
		t.Errorf("Expected default issuer '%s', got '%s'", IssuerCertbot, config.Issuer)
	}
	if config.KeyType != "RSA2048" {
		t.Errorf("Expected default key_type 'RSA2048', got '%s'", config.KeyType)
	}
	if config.IssuanceRoot != "/etc/letsencrypt/live" {
		t.Errorf("Expected default issuance_root, got '%s'", config.IssuanceRoot)
	}
	if config.HTTPChallengePort != 80 {
		t.Errorf("Expected default http_challenge_port 80, got %d", config.HTTPChallengePort)
	}

	expectedCert := "/etc/letsencrypt/live/example.internal/cert.pem"
	if config.CertPath() != expectedCert {
		t.Errorf("Expected cert path '%s', got '%s'", expectedCert, config.CertPath())
	}
	expectedKey := "/etc/letsencrypt/live/example.internal/privkey.pem"
	if config.KeyPath() != expectedKey {
		t.Errorf("Expected key path '%s', got '%s'", expectedKey, config.KeyPath())
	}
}

func TestLoadLastValueWins(t *testing.T) {
	path := writeConfig(t, `domain=first.internal
namespace=demo-namespace
cert_name=example-cert
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
domain=second.internal
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Domain != "second.internal" {
		t.Errorf("Expected last value to win for domain, got '%s'", config.Domain)
	}
}

func TestLoadValueContainingEquals(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
cert_name=example-cert
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory?param=value
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ACMEServer != "https://acme.example.com/acme/directory?param=value" {
		t.Errorf("Expected value split on first '=' only, got '%s'", config.ACMEServer)
	}
}

func TestLoadMalformedLine(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
this line has no separator
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for malformed line")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected a ParseError, got %v", err)
	}
	if parseErr.Line != 2 {
		t.Errorf("Expected error on line 2, got line %d", parseErr.Line)
	}
}

func TestLoadMissingRequiredKey(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for missing cert_name")
	}
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "cert_name") {
		t.Errorf("Expected error to name the missing key, got: %v", err)
	}
}

func TestLoadEmptyRequiredValue(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
cert_name=
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
`)

	_, err := Load(path)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey for empty value, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadInvalidIssuer(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
cert_name=example-cert
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
issuer=openssl
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "issuer") {
		t.Errorf("Expected issuer validation error, got %v", err)
	}
}

func TestLoadLegoRequiresEmail(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
cert_name=example-cert
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
issuer=lego
`)

	_, err := Load(path)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey for missing acme_email, got %v", err)
	}
}

func TestLoadDeterministic(t *testing.T) {
	path := writeConfig(t, `domain=example.internal
namespace=demo-namespace
cert_name=example-cert
tenant_name=my-tenant
acme_server=https://acme.example.com/acme/directory
key_type=EC256
`)

	first, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	second, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to re-load config: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected loading the same file twice to yield equal configurations")
	}
	if !reflect.DeepEqual(first.Settings(), second.Settings()) {
		t.Error("Expected effective settings to be deterministic")
	}
}

func TestParseEnvDefaults(t *testing.T) {
	for _, key := range []string{"XC_TOKEN", "ACME_CA_BUNDLE", "XC_HTTP_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(key, "placeholder") // register cleanup, then clear
		os.Unsetenv(key)
	}

	env, err := ParseEnv()
	if err != nil {
		t.Fatalf("Failed to parse environment: %v", err)
	}

	if env.HTTPTimeout != 30*time.Second {
		t.Errorf("Expected default HTTP timeout 30s, got %v", env.HTTPTimeout)
	}
	if env.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", env.LogLevel)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("XC_TOKEN", "test-token")
	t.Setenv("ACME_CA_BUNDLE", "/usr/local/share/ca-certificates/acme.crt")
	t.Setenv("XC_HTTP_TIMEOUT", "90s")

	env, err := ParseEnv()
	if err != nil {
		t.Fatalf("Failed to parse environment: %v", err)
	}

	if env.Token != "test-token" {
		t.Errorf("Expected token from environment, got '%s'", env.Token)
	}
	if env.CABundle != "/usr/local/share/ca-certificates/acme.crt" {
		t.Errorf("Expected CA bundle from environment, got '%s'", env.CABundle)
	}
	if env.HTTPTimeout != 90*time.Second {
		t.Errorf("Expected HTTP timeout 90s, got %v", env.HTTPTimeout)
	}
}
