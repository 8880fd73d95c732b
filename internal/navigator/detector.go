package navigator

import (
	"net/url"
	"path"
	"strings"

	"github.com/xkilldash9x/pagemapper/internal/config"
)

// RedirectDetector decides whether current is a login page the session was
// sent to while trying to reach requested. login is nil when no login is
// configured.
type RedirectDetector func(requested, current *url.URL, login *config.LoginConfig) bool

// authSegments are path segments that mark an authentication page.
var authSegments = map[string]bool{
	"auth":         true,
	"authenticate": true,
	"authorize":    true,
	"login":        true,
	"log-in":       true,
	"logon":        true,
	"signin":       true,
	"sign-in":      true,
	"sso":          true,
	"oauth":        true,
	"oauth2":       true,
	"saml":         true,
}

// DefaultRedirectDetector reports a login redirect when current matches the
// configured login URL, carries an authentication path segment, or moved to
// another host without keeping the requested path. Landing exactly on the
// requested page is never a redirect.
func DefaultRedirectDetector(requested, current *url.URL, login *config.LoginConfig) bool {
	if current == nil {
		return false
	}
	if login != nil && login.LoginURL != "" {
		if lu, err := url.Parse(login.LoginURL); err == nil && lu.Path != "" {
			hostMatches := lu.Host == "" || strings.EqualFold(lu.Host, current.Host)
			if hostMatches && cleanPath(lu.Path) == cleanPath(current.Path) {
				return true
			}
		}
	}
	if requested == nil {
		return HasAuthSegment(current.Path)
	}

	sameHost := strings.EqualFold(requested.Host, current.Host)
	if sameHost && cleanPath(requested.Path) == cleanPath(current.Path) {
		return false
	}
	if HasAuthSegment(current.Path) {
		return true
	}
	return !sameHost && !strings.Contains(cleanPath(current.Path), cleanPath(requested.Path))
}

// HasAuthSegment reports whether any path segment, ignoring a file
// extension, is an authentication marker.
func HasAuthSegment(p string) bool {
	for _, seg := range strings.Split(strings.ToLower(p), "/") {
		if ext := path.Ext(seg); ext != "" {
			seg = strings.TrimSuffix(seg, ext)
		}
		if authSegments[seg] {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}
