package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Issuer selection values for the optional "issuer" key.
const (
	IssuerCertbot = "certbot"
	IssuerLego    = "lego"
)

const (
	certFileName = "cert.pem"
	keyFileName  = "privkey.pem"
)

// requiredKeys must be present and non-empty after parsing.
var requiredKeys = []string{"domain", "namespace", "cert_name", "tenant_name", "acme_server"}

// ErrMissingKey reports a required configuration key that is absent or empty.
var ErrMissingKey = errors.New("required configuration key missing")

// ParseError reports a line that could not be parsed as key=value.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid format in configuration file at line %d: %q", e.Line, e.Text)
}

// Config holds the settings for a single renewal run.
type Config struct {
	Domain     string
	Namespace  string
	CertName   string
	TenantName string
	ACMEServer string

	Issuer            string
	ACMEEmail         string
	KeyType           string
	IssuanceRoot      string
	HTTPChallengePort int

	settings map[string]string
}

// Load reads a flat key=value configuration file.
//
// Blank lines and lines starting with '#' are skipped. Every other line is
// split on the first '='; keys are taken verbatim and later duplicates
// overwrite earlier ones. All required keys must be present and non-empty.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	settings := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, &ParseError{Line: lineNo, Text: line}
		}
		settings[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{settings: settings}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.apply(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate ensures all required keys are present and non-empty
func (c *Config) validate() error {
	for _, key := range requiredKeys {
		if c.settings[key] == "" {
			return fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
	}
	return nil
}

// apply copies the parsed settings into typed fields and fills in defaults
// for the optional keys.
func (c *Config) apply() error {
	c.Domain = c.settings["domain"]
	c.Namespace = c.settings["namespace"]
	c.CertName = c.settings["cert_name"]
	c.TenantName = c.settings["tenant_name"]
	c.ACMEServer = c.settings["acme_server"]

	c.Issuer = c.settings["issuer"]
	if c.Issuer == "" {
		c.Issuer = IssuerCertbot
	}
	if c.Issuer != IssuerCertbot && c.Issuer != IssuerLego {
		return fmt.Errorf("issuer must be %q or %q, got %q", IssuerCertbot, IssuerLego, c.Issuer)
	}

	c.ACMEEmail = c.settings["acme_email"]
	if c.Issuer == IssuerLego && c.ACMEEmail == "" {
		return fmt.Errorf("%w: acme_email (required when issuer=lego)", ErrMissingKey)
	}

	c.KeyType = c.settings["key_type"]
	if c.KeyType == "" {
		c.KeyType = "RSA2048"
	}
	switch c.KeyType {
	case "RSA2048", "RSA4096", "EC256", "EC384":
	default:
		return fmt.Errorf("unsupported key_type %q", c.KeyType)
	}

	c.IssuanceRoot = c.settings["issuance_root"]
	if c.IssuanceRoot == "" {
		c.IssuanceRoot = "/etc/letsencrypt/live"
	}

	port := c.settings["http_challenge_port"]
	if port == "" {
		c.HTTPChallengePort = 80
	} else {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid http_challenge_port %q", port)
		}
		c.HTTPChallengePort = p
	}

	// Reflect the defaults back so Settings reports effective values.
	c.settings["issuer"] = c.Issuer
	c.settings["key_type"] = c.KeyType
	c.settings["issuance_root"] = c.IssuanceRoot
	c.settings["http_challenge_port"] = strconv.Itoa(c.HTTPChallengePort)

	return nil
}

// CertPath returns the path where the issuer leaves the certificate.
func (c *Config) CertPath() string {
	return filepath.Join(c.IssuanceRoot, c.Domain, certFileName)
}

// KeyPath returns the path where the issuer leaves the private key.
func (c *Config) KeyPath() string {
	return filepath.Join(c.IssuanceRoot, c.Domain, keyFileName)
}

// Settings returns a copy of the effective settings.
func (c *Config) Settings() map[string]string {
	out := make(map[string]string, len(c.settings))
	for k, v := range c.settings {
		out[k] = v
	}
	return out
}
