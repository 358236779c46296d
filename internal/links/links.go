// Package links carries the dossier reference through internal navigation
// links as the "d" query parameter.
package links

import (
	"net/url"
	"regexp"
	"strings"
)

// Param is the query parameter naming the dossier.
const Param = "d"

var (
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)
	slugRe   = regexp.MustCompile(`(?i)[^a-z0-9\-_]+`)
)

// neutral routes never carry a dossier reference.
var neutral = []string{"/intake", "/privacy"}

// IsNeutral reports whether path is dossier-neutral.
func IsNeutral(path string) bool {
	for _, n := range neutral {
		if path == n || strings.HasPrefix(path, n+"/") {
			return true
		}
	}
	return false
}

// IsInternal reports whether href is a same-site path that WithDossier may
// rewrite. Anchors, protocol-relative and scheme URLs are external.
func IsInternal(href string) bool {
	h := strings.TrimSpace(href)
	return h != "" &&
		!strings.HasPrefix(h, "#") &&
		!strings.HasPrefix(h, "//") &&
		!schemeRe.MatchString(h)
}

// WithDossier sets d=<id> on an internal href, overwriting any existing
// value in place and keeping the rest of the query and the fragment.
// External links are returned unchanged; neutral routes have the parameter
// stripped instead.
func WithDossier(href, id string) string {
	if !IsInternal(href) {
		return href
	}
	h := strings.TrimSpace(href)
	id = strings.TrimSpace(id)

	beforeHash, fragment := h, ""
	if i := strings.IndexByte(h, '#'); i >= 0 {
		beforeHash, fragment = h[:i], h[i:]
	}
	path, query := beforeHash, ""
	if i := strings.IndexByte(beforeHash, '?'); i >= 0 {
		path, query = beforeHash[:i], beforeHash[i+1:]
	}

	switch {
	case IsNeutral(path):
		query = setParam(query, "")
	case id == "":
		return href
	default:
		query = setParam(query, id)
	}

	if query == "" {
		return path + fragment
	}
	return path + "?" + query + fragment
}

// setParam rewrites the raw query so that it carries exactly one d=value at
// the position of the first existing occurrence, or appended. An empty value
// removes the parameter.
func setParam(query, value string) string {
	var parts []string
	placed := false
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil && k == Param {
			if value != "" && !placed {
				parts = append(parts, Param+"="+url.QueryEscape(value))
				placed = true
			}
			continue
		}
		parts = append(parts, pair)
	}
	if value != "" && !placed {
		parts = append(parts, Param+"="+url.QueryEscape(value))
	}
	return strings.Join(parts, "&")
}

// StepHref is the resume link for a step of a dossier.
func StepHref(stepID, id string) string {
	return WithDossier("/steps/"+stepID, id)
}

// Slug lower-cases s and collapses every run of characters outside
// [a-z0-9-_] into a single dash.
func Slug(s string) string {
	return strings.ToLower(slugRe.ReplaceAllString(s, "-"))
}

// ExportFilename is the download name for an exported dossier.
func ExportFilename(projectName, id string) string {
	if projectName == "" {
		projectName = "dossier"
	}
	return Slug(projectName) + "-" + id + ".json"
}
