package notification

import "strings"

// ResolveAvatarRef turns a possibly-relative avatar reference into a
// displayable URL. Absolute references pass through untouched; relative
// ones are prefixed with the configured base. An empty reference resolves
// to the empty string.
func ResolveAvatarRef(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(ref, "/")
}
