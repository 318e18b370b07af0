package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// DefaultPeriod is the RFC 6238 time step
	DefaultPeriod = 30
	// DefaultSkew accepts one step either side of the current bucket
	DefaultSkew = 1
	// DefaultIssuer is shown by authenticator apps
	DefaultIssuer = "C5ISR Zero Trust"
	// AccountSuffix is appended to usernames in provisioning URIs
	AccountSuffix = "@c5isr"
)

var ErrInvalidSecret = errors.New("invalid totp secret")

// Verifier validates time-based codes against per-identity secrets
type Verifier struct {
	Period uint
	Skew   uint
	Issuer string
}

// NewVerifier creates a verifier with the default step and skew
func NewVerifier(issuer string, skew uint) *Verifier {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Verifier{
		Period: DefaultPeriod,
		Skew:   skew,
		Issuer: issuer,
	}
}

func (v *Verifier) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    v.Period,
		Skew:      v.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Validate accepts code if it matches any bucket in [t-skew, t+skew]
func (v *Verifier) Validate(code, secret string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), v.opts())
	return err == nil && ok
}

// Code returns the expected code for the bucket containing at
func (v *Verifier) Code(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at.UTC(), v.opts())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return code, nil
}

// Key builds the enrollment key for an existing secret
func (v *Verifier) Key(username, secret string) (*otp.Key, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	return totp.Generate(totp.GenerateOpts{
		Issuer:      v.Issuer,
		AccountName: username + AccountSuffix,
		Period:      v.Period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

// ProvisioningURI returns the otpauth:// URI for authenticator apps
func (v *Verifier) ProvisioningURI(username, secret string) (string, error) {
	key, err := v.Key(username, secret)
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// QRImage renders the provisioning URI as a QR image
func (v *Verifier) QRImage(username, secret string, size int) (image.Image, error) {
	key, err := v.Key(username, secret)
	if err != nil {
		return nil, err
	}
	return key.Image(size, size)
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.TrimRight(s, "=")
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}
