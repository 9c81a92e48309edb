package httpapi

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const DefaultBaseURL = "http://127.0.0.1:5013"

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL checks the backend address. Plain http is only accepted
// for loopback hosts. An empty allow-list accepts any host.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)
	bad := func(reason string) error {
		return fmt.Errorf("invalid TREDIT_BASE_URL %q: %s", baseURL, reason)
	}

	u, err := url.Parse(baseURL)
	switch {
	case err != nil:
		return fmt.Errorf("invalid TREDIT_BASE_URL: %w", err)
	case !u.IsAbs() || u.Hostname() == "":
		return bad("absolute URL with host is required")
	case u.User != nil:
		return bad("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return bad("query and fragment are not allowed")
	}

	host := strings.ToLower(u.Hostname())
	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !isLoopback(host) {
			return bad("https is required for non-local hosts")
		}
	default:
		return bad(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	allowed := hostSet(allowedHosts)
	if len(allowed) > 0 && !allowed[host] {
		return bad(fmt.Sprintf("host %q is not in TREDIT_ALLOWED_HOSTS", host))
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// hostSet reduces allow-list entries to bare lower-case host names. Entries
// may carry a scheme, a port or a trailing slash.
func hostSet(entries []string) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if i := strings.Index(e, "://"); i >= 0 {
			e = e[i+3:]
		}
		e = strings.TrimRight(e, "/")
		if h, _, err := net.SplitHostPort(e); err == nil {
			e = h
		}
		e = strings.Trim(e, "[]")
		if e != "" {
			set[e] = true
		}
	}
	return set
}
