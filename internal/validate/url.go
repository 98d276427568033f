package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URL validation errors.
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrPrivateHost      = errors.New("URL points at a private or local host")
)

// MaxURLLength bounds image URLs attached to questions.
const MaxURLLength = 2048

// ImageURL validates an image URL attached to a question. Only https URLs
// with a public host are accepted. Hostnames are not resolved.
func ImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	if len(raw) > MaxURLLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("%w: got %q, want https", ErrDisallowedScheme, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return "", ErrPrivateHost
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()) {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, ip)
	}

	return raw, nil
}
