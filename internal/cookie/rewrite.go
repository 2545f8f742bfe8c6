// Package cookie rewrites upstream Set-Cookie directives for cross-site delivery.
//
// Browsers only send a cookie on cross-site requests when it is marked
// SameSite=None and Secure. Backends commonly default to Lax or Strict, so a
// frontend served from another origin never gets its session back. Rewrite
// turns such directives into ones the browser will keep.
package cookie

import (
	"net/http"
	"regexp"
	"strings"
)

// sameSitePattern matches a restrictive SameSite attribute in any case.
var sameSitePattern = regexp.MustCompile(`(?i)\bSameSite\s*=\s*(?:Lax|Strict)\b`)

const headerSetCookie = "Set-Cookie"

// Rewrite returns directive with a SameSite=Lax/Strict attribute replaced by
// SameSite=None and a Secure attribute appended when missing. The leading
// name=value pair is never modified. Directives that cannot be
// parsed are still returned, with Secure added if absent.
func Rewrite(directive string) string {
	if strings.TrimSpace(directive) == "" {
		return directive
	}

	out := directive
	if pair, attrs, ok := strings.Cut(directive, ";"); ok {
		out = pair + ";" + sameSitePattern.ReplaceAllString(attrs, "SameSite=None")
	}
	if !hasSecure(out) {
		out = strings.TrimRight(out, "; \t") + "; Secure"
	}
	return out
}

// RewriteHeader rewrites every Set-Cookie value in h in place and returns how
// many directives it saw. Values are never merged: one directive in, one out.
func RewriteHeader(h http.Header) int {
	vals := h[headerSetCookie]
	for i, v := range vals {
		vals[i] = Rewrite(v)
	}
	return len(vals)
}

// hasSecure reports whether any attribute after the name=value pair is Secure.
func hasSecure(directive string) bool {
	parts := strings.Split(directive, ";")
	for _, attr := range parts[1:] {
		if strings.EqualFold(strings.TrimSpace(attr), "Secure") {
			return true
		}
	}
	return false
}
