package transformcache

import (
	"strings"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/cachekey"
)

// DefaultFormatPriority is the candidate scan order for format-variant keys,
// modern formats first. Bounded deliberately: each candidate is a
// persistent-store round trip on the miss path.
var DefaultFormatPriority = []string{"avif", "webp", "jpeg", "png"}

// formatAliases maps content-type subtypes to canonical format names.
var formatAliases = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"webp": "webp",
	"avif": "avif",
	"png":  "png",
	"gif":  "gif",
	"svg":  "svg",
	"ico":  "ico",
}

// FormatFromContentType derives the canonical format name from a MIME type,
// e.g. "image/webp" -> "webp". Unknown or empty content types yield "bin" so
// written entries never carry an "auto" format.
func FormatFromContentType(contentType string) string {
	subtype := contentType
	if i := strings.Index(subtype, "/"); i >= 0 {
		subtype = subtype[i+1:]
	}
	if i := strings.Index(subtype, ";"); i >= 0 {
		subtype = subtype[:i]
	}
	subtype = strings.ToLower(strings.TrimSpace(subtype))
	subtype = strings.TrimPrefix(subtype, "x-")
	subtype = strings.TrimSuffix(subtype, "+xml")

	if canonical, ok := formatAliases[subtype]; ok {
		return canonical
	}
	if subtype == "" {
		return "bin"
	}
	return subtype
}

// candidateKeys builds the ordered key list for the read path:
//
//  1. the canonical key with no explicit actual format (historical/default),
//  2. the requested format, when present and not "auto",
//  3. each common output format in priority order, skipping the requested
//     format (already tried).
//
// Duplicates are removed preserving order; a write with actualFormat equal
// to the requested format lands on the same key as candidate 2.
func (c *Cache) candidateKeys(req cachekey.Request) []string {
	priority := c.cfg.FormatPriority
	if max := c.cfg.MaxFormatCandidates; max > 0 && len(priority) > max {
		priority = priority[:max]
	}

	keys := make([]string, 0, len(priority)+2)
	keys = append(keys, c.keys.Build(req, ""))

	if rf := req.RequestedFormat; rf != "" && rf != cachekey.FormatAuto {
		keys = append(keys, c.keys.Build(req, rf))
	}
	for _, format := range priority {
		if format == req.RequestedFormat {
			continue
		}
		keys = append(keys, c.keys.Build(req, format))
	}

	seen := make(map[string]struct{}, len(keys))
	deduped := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, key)
	}
	return deduped
}
