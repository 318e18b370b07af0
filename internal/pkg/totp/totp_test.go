package totp

import (
	"bytes"
	"image/png"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analystSecret = "KRSXG5CTMVRXEZLUKRSXG5CTMVRXEZLU"

func TestValidateSkewWindow(t *testing.T) {
	v := NewVerifier("", DefaultSkew)
	bucket := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	step := time.Duration(DefaultPeriod) * time.Second

	code, err := v.Code(analystSecret, bucket)
	require.NoError(t, err)
	require.Len(t, code, 6)

	assert.True(t, v.Validate(code, analystSecret, bucket))
	assert.True(t, v.Validate(code, analystSecret, bucket.Add(-step)), "t-1 accepted")
	assert.True(t, v.Validate(code, analystSecret, bucket.Add(step)), "t+1 accepted")
	assert.False(t, v.Validate(code, analystSecret, bucket.Add(-2*step)), "t-2 rejected")
	assert.False(t, v.Validate(code, analystSecret, bucket.Add(2*step)), "t+2 rejected")
}

func TestValidateRejectsGarbage(t *testing.T) {
	v := NewVerifier("", DefaultSkew)
	now := time.Date(2026, 2, 14, 12, 0, 10, 0, time.UTC)

	assert.False(t, v.Validate("", analystSecret, now))
	assert.False(t, v.Validate("12345", analystSecret, now))
	assert.False(t, v.Validate("abcdef", analystSecret, now))
	assert.False(t, v.Validate("123456", "", now))
}

func TestZeroSkew(t *testing.T) {
	v := NewVerifier("", 0)
	bucket := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	code, err := v.Code(analystSecret, bucket)
	require.NoError(t, err)

	assert.True(t, v.Validate(code, analystSecret, bucket.Add(29*time.Second)))
	assert.False(t, v.Validate(code, analystSecret, bucket.Add(30*time.Second)))
}

func TestProvisioningURI(t *testing.T) {
	v := NewVerifier("", DefaultSkew)
	uri, err := v.ProvisioningURI("analyst", analystSecret)
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, analystSecret, u.Query().Get("secret"))
	assert.Equal(t, DefaultIssuer, u.Query().Get("issuer"))
	assert.Contains(t, u.Path, "analyst@c5isr")

	_, err = v.ProvisioningURI("analyst", "not base32!")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestQRImage(t *testing.T) {
	v := NewVerifier("", DefaultSkew)
	img, err := v.QRImage("analyst", analystSecret, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	assert.NotZero(t, buf.Len())
}
