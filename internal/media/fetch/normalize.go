package fetch

import (
	"net/url"
	"strings"

	"vidsum/internal/config"
	"vidsum/internal/services"
)

// Query keys that select a collection rather than a video.
var collectionKeys = map[string]struct{}{
	"list":        {},
	"index":       {},
	"start_radio": {},
	"pp":          {},
}

// NormalizeReference cleans a submitted reference down to a single item.
// A "v" parameter is kept wherever it appears and every other query key is
// dropped. Without one, the query is cut at the first "&", and a lone
// collection key is removed when the path already names the item. Bare
// /watch and /playlist pages keep their key so the downloader's
// first-item limit still applies. Local paths and file:// URLs come back as
// cleaned absolute paths.
func NormalizeReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "fetching", "normalize reference", "reference is empty", nil)
	}
	if path, ok := LocalPath(ref); ok {
		abs, err := config.ExpandPath(path)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "fetching", "normalize reference", "resolve local path", err)
		}
		return abs, nil
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "", services.Wrap(services.ErrValidation, "fetching", "normalize reference", "unparseable reference "+ref, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", services.Wrap(services.ErrValidation, "fetching", "normalize reference", "unsupported scheme "+parsed.Scheme, nil)
	}
	parsed.Fragment = ""

	if video := parsed.Query().Get("v"); video != "" {
		parsed.RawQuery = url.Values{"v": {video}}.Encode()
		return parsed.String(), nil
	}
	if idx := strings.Index(parsed.RawQuery, "&"); idx >= 0 {
		parsed.RawQuery = parsed.RawQuery[:idx]
	}
	key, _, _ := strings.Cut(parsed.RawQuery, "=")
	if _, ok := collectionKeys[key]; ok && namesItem(parsed.Path) {
		parsed.RawQuery = ""
	}
	return parsed.String(), nil
}

// namesItem reports whether path identifies a video on its own, as short
// links and embed URLs do.
func namesItem(path string) bool {
	switch strings.TrimSuffix(path, "/") {
	case "", "/watch", "/playlist":
		return false
	default:
		return true
	}
}

// LocalPath reports whether ref names a file on this machine and returns
// its filesystem path.
func LocalPath(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", false
	case strings.HasPrefix(ref, "file://"):
		parsed, err := url.Parse(ref)
		if err != nil || parsed.Path == "" {
			return "", false
		}
		return parsed.Path, true
	case strings.Contains(ref, "://"):
		return "", false
	case strings.HasPrefix(ref, "/"), strings.HasPrefix(ref, "./"), strings.HasPrefix(ref, "../"), strings.HasPrefix(ref, "~"):
		return ref, true
	default:
		return "", false
	}
}
