package stream

import (
	"fmt"
	"strings"
)

const publicDeliveryBase = "https://videodelivery.net"

// URLBuilder composes streaming manifest URLs. The two delivery domains are
// not interchangeable: the public one ignores tokens, and the customer one
// requires them for signed assets, so mixing them up either leaks content or
// breaks playback.
type URLBuilder struct {
	customerDomain string
}

func NewURLBuilder(cfg *Config) *URLBuilder {
	return &URLBuilder{customerDomain: normalizeDomain(cfg.CustomerDomain)}
}

// ManifestURL returns the HLS manifest URL for a playback id. With a token
// the signed customer domain is used with the token embedded in the path;
// without one the public delivery domain serves the manifest directly.
func (b *URLBuilder) ManifestURL(playbackID, token string) (string, error) {
	if token != "" {
		if b.customerDomain == "" {
			return "", fmt.Errorf("stream: customer domain not configured for signed playback")
		}
		return b.customerDomain + "/" + token + manifestSuffix, nil
	}
	return publicDeliveryBase + "/" + playbackID + manifestSuffix, nil
}

func normalizeDomain(dom string) string {
	dom = strings.TrimRight(strings.TrimSpace(dom), "/")
	if dom == "" {
		return ""
	}
	if !strings.HasPrefix(dom, "http") {
		dom = "https://" + dom
	}
	return dom
}
