package urlutil

import (
	"net/url"
	"path"
	"strings"
)

var binaryExtensions = map[string]bool{
	".7z": true, ".avi": true, ".bmp": true, ".css": true, ".dmg": true,
	".doc": true, ".docx": true, ".eot": true, ".exe": true, ".flac": true,
	".gif": true, ".gz": true, ".ico": true, ".iso": true, ".jpeg": true,
	".jpg": true, ".js": true, ".m4a": true, ".mov": true, ".mp3": true,
	".mp4": true, ".mpeg": true, ".ogg": true, ".otf": true, ".pdf": true,
	".png": true, ".ppt": true, ".pptx": true, ".rar": true, ".svg": true,
	".tar": true, ".tgz": true, ".tif": true, ".tiff": true, ".ttf": true,
	".wav": true, ".webm": true, ".webp": true, ".woff": true, ".woff2": true,
	".xls": true, ".xlsx": true, ".zip": true,
}

// Resolve resolves href against base and returns an absolute HTTP(S) URL.
func Resolve(base *url.URL, href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	if !isSupportedScheme(parsed.Scheme) {
		return "", false
	}

	resolved := resolveReference(base, parsed)
	if !isSupportedScheme(resolved.Scheme) || resolved.Host == "" {
		return "", false
	}

	canonicalizeRootPath(resolved)
	resolved.Fragment = ""

	return resolved.String(), true
}

// IsSamePageVariant reports whether href only changes the fragment or query of the current page.
func IsSamePageVariant(href string) bool {
	trimmed := strings.TrimSpace(href)

	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "?")
}

func isSupportedScheme(scheme string) bool {
	return scheme == "" || scheme == "http" || scheme == "https"
}

func resolveReference(base *url.URL, parsed *url.URL) *url.URL {
	if parsed.Scheme == "" {
		return base.ResolveReference(parsed)
	}

	return parsed
}

func canonicalizeRootPath(u *url.URL) {
	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}
}

// Hostname returns the lower-cased host of raw without port and leading "www.".
func Hostname(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	if parsed.Host == "" && parsed.Scheme == "" {
		// Bare domains such as "example.com/path".
		parsed, err = url.Parse("http://" + strings.TrimSpace(raw))
		if err != nil {
			return ""
		}
	}

	return stripWWW(strings.ToLower(parsed.Hostname()))
}

// SameDomain reports whether raw belongs to domain, ignoring case, port and a leading "www.".
// domain may be a bare host or a full URL.
func SameDomain(domain string, raw string) bool {
	want := Hostname(domain)
	if want == "" {
		return false
	}

	return Hostname(raw) == want
}

func stripWWW(host string) string {
	if len(host) > 4 && host[:4] == "www." {
		return host[4:]
	}

	return host
}

// HasBinaryExtension reports whether the URL path ends in a common non-HTML file extension.
func HasBinaryExtension(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	ext := strings.ToLower(path.Ext(parsed.Path))

	return binaryExtensions[ext]
}

// StripQueryAndFragment drops the query and fragment and canonicalizes the root path.
func StripQueryAndFragment(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	canonicalizeRootPath(parsed)

	return parsed.String()
}

// PathSegments returns the non-empty path segments of raw.
func PathSegments(raw string) []string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	segments := []string{}
	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return segments
}

// PathDepth returns the number of non-empty path segments of raw.
func PathDepth(raw string) int {
	return len(PathSegments(raw))
}
