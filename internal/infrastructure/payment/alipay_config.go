package payment

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/groupbuy/backend/internal/infrastructure/config"
)

// AlipayConfig contains configuration for Alipay Open Platform API
type AlipayConfig struct {
	AppID string
	// PrivateKey signs requests
	PrivateKey *rsa.PrivateKey
	// AlipayPublicKey verifies Alipay's signatures
	AlipayPublicKey *rsa.PublicKey
	IsSandbox       bool
	NotifyURL       string
	ReturnURL       string
	// GatewayURL overrides the production/sandbox endpoint
	GatewayURL string
}

// Errors for configuration validation
var (
	ErrAlipayMissingAppID      = errors.New("alipay: missing app ID")
	ErrAlipayMissingPrivateKey = errors.New("alipay: missing private key")
	ErrAlipayInvalidPrivateKey = errors.New("alipay: invalid private key format")
	ErrAlipayMissingPublicKey  = errors.New("alipay: missing Alipay public key")
	ErrAlipayInvalidPublicKey  = errors.New("alipay: invalid Alipay public key format")
	ErrAlipayMissingNotifyURL  = errors.New("alipay: missing notify URL")
)

// Validate validates the configuration
func (c *AlipayConfig) Validate() error {
	switch {
	case c.AppID == "":
		return ErrAlipayMissingAppID
	case c.PrivateKey == nil:
		return ErrAlipayMissingPrivateKey
	case c.AlipayPublicKey == nil:
		return ErrAlipayMissingPublicKey
	case c.NotifyURL == "":
		return ErrAlipayMissingNotifyURL
	}
	return nil
}

func (c *AlipayConfig) endpoint() string {
	switch {
	case c.GatewayURL != "":
		return c.GatewayURL
	case c.IsSandbox:
		return alipaySandboxGatewayURL
	default:
		return alipayGatewayURL
	}
}

// AlipayConfigFromSettings loads keys from PEM strings or files
func AlipayConfigFromSettings(s config.AlipaySettings) (*AlipayConfig, error) {
	cfg := &AlipayConfig{
		AppID:     s.AppID,
		IsSandbox: s.Sandbox,
		NotifyURL: s.NotifyURL,
		ReturnURL: s.ReturnURL,
	}

	privPEM, err := pemOrFile(s.PrivateKeyPEM, s.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to read private key file: %w", err)
	}
	if privPEM != "" {
		if cfg.PrivateKey, err = ParsePrivateKey(privPEM); err != nil {
			return nil, err
		}
	}

	pubPEM, err := pemOrFile(s.PublicKeyPEM, s.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to read public key file: %w", err)
	}
	if pubPEM != "" {
		if cfg.AlipayPublicKey, err = ParsePublicKey(pubPEM); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pemOrFile(inline, path string) (string, error) {
	if inline != "" || path == "" {
		return inline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParsePrivateKey accepts PKCS8 or PKCS1 PEM
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, ErrAlipayInvalidPrivateKey
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrAlipayInvalidPrivateKey
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlipayInvalidPrivateKey, err)
	}
	return key, nil
}

// ParsePublicKey accepts PKIX PEM
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, ErrAlipayInvalidPublicKey
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlipayInvalidPublicKey, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, ErrAlipayInvalidPublicKey
	}
	return rsaKey, nil
}
