package server

import (
	"net/http"
	"regexp"
)

const (
	// DefaultAPIVersion is used when the client does not ask for one.
	DefaultAPIVersion = "v1"

	// HeaderAPIVersion carries the negotiated version on responses.
	HeaderAPIVersion = "X-API-Version"
)

var (
	supportedAPIVersions = []string{"v1"}

	// application/vnd.nvidia.cnsfacts.v1+json
	vendorMediaType = regexp.MustCompile(`application/vnd\.nvidia\.cnsfacts\.(v[0-9]+)\+(?:json|yaml)`)
)

// negotiateAPIVersion extracts the API version from a vendor media type in
// the Accept header, falling back to DefaultAPIVersion.
func negotiateAPIVersion(r *http.Request) string {
	m := vendorMediaType.FindStringSubmatch(r.Header.Get("Accept"))
	if m == nil || !isValidAPIVersion(m[1]) {
		return DefaultAPIVersion
	}
	return m[1]
}

func isValidAPIVersion(v string) bool {
	for _, s := range supportedAPIVersions {
		if v == s {
			return true
		}
	}
	return false
}
