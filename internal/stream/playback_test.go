package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestURLPublic(t *testing.T) {
	b := NewURLBuilder(&Config{})

	url, err := b.ManifestURL("pb123", "")
	require.NoError(t, err)
	assert.Equal(t, "https://videodelivery.net/pb123/manifest/video.m3u8", url)
}

func TestManifestURLSigned(t *testing.T) {
	b := NewURLBuilder(&Config{CustomerDomain: "https://customer-abc.cloudflarestream.com/"})

	url, err := b.ManifestURL("pb123", "tok.en")
	require.NoError(t, err)
	assert.Equal(t, "https://customer-abc.cloudflarestream.com/tok.en/manifest/video.m3u8", url)
}

func TestManifestURLSignedWithoutDomain(t *testing.T) {
	b := NewURLBuilder(&Config{})

	_, err := b.ManifestURL("pb123", "tok.en")
	assert.Error(t, err)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeDomain("example.com"))
	assert.Equal(t, "https://example.com", normalizeDomain(" https://example.com/ "))
	assert.Empty(t, normalizeDomain(""))
}
