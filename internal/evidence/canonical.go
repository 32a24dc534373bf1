package evidence

import (
	"net/url"
	"strings"
)

// Canonicalize normalizes an evidence URL: https scheme, lowercase host, no
// query or fragment, no trailing slash except on a bare root. It never fails;
// input that does not parse as an absolute URL is lowercased and given an
// https scheme instead. Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if c, ok := canonicalParsed(s); ok {
		return c
	}
	coerced := coerce(s)
	if c, ok := canonicalParsed(coerced); ok {
		return c
	}
	return coerced
}

func canonicalParsed(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || u.Opaque != "" {
		return "", false
	}
	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path != "/" {
		trimmed := strings.TrimRight(u.Path, "/")
		if trimmed == "" && u.Path != "" {
			trimmed = "/"
		}
		u.Path = trimmed
		u.RawPath = ""
	}
	return u.String(), true
}

// coerce lowercases s and forces an https scheme.
func coerce(s string) string {
	s = strings.ToLower(s)
	if i := strings.Index(s, "://"); i >= 0 {
		return "https://" + s[i+3:]
	}
	return "https://" + strings.TrimLeft(s, "/")
}
