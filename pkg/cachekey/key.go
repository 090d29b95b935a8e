package cachekey

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultPrefix is the first field of every key unless overridden.
	DefaultPrefix = "transform"

	// FormatAuto is the literal used for the format field when neither an
	// actual nor a requested output format is known.
	FormatAuto = "auto"

	// emptyBasename substitutes for paths without a usable last segment.
	emptyBasename = "image"
)

// Request identifies one logical transformation request for key building.
type Request struct {
	// Path is the source resource path (e.g. "/a/b/Photo.JPG").
	Path string

	// Query is the raw query string of the original request. It feeds the
	// hash in order-normalized form.
	Query url.Values

	// Params are the parsed transform parameters (width, height, ...).
	Params map[string]any

	// RequestedFormat is the client-requested output format. Empty or
	// "auto" means the client left format selection to the server.
	RequestedFormat string
}

// Builder builds canonical keys with a fixed prefix.
type Builder struct {
	Prefix string
}

// NewBuilder returns a Builder, falling back to DefaultPrefix.
func NewBuilder(prefix string) Builder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Builder{Prefix: prefix}
}

// Build generates the canonical key for a request.
//
// actualFormat is the real content format of a produced result and takes
// precedence over the requested format. Pass "" on the read path when probing
// the historical/default key. The hash covers path, normalized query, and
// canonical parameters only, never the format field, so all format variants
// of one logical resource share the same hash.
func (b Builder) Build(req Request, actualFormat string) string {
	basename := path.Base(strings.TrimRight(req.Path, "/"))
	if basename == "" || basename == "." || basename == "/" {
		basename = emptyBasename
	}

	hashInput := req.Path + "?" + CanonicalQuery(req.Query) + "#" + CanonicalParams(req.Params)

	format := actualFormat
	if format == "" {
		format = req.RequestedFormat
	}
	if format == "" {
		format = FormatAuto
	}

	return strings.Join([]string{
		b.Prefix,
		sanitizeField(basename),
		ParamSummary(req.Params),
		sanitizeField(format),
		hashHex(hashInput),
	}, ":")
}

// hashHex computes a 32-bit FNV-1a digest over the UTF-8 bytes of s and
// renders it as fixed-width lowercase hex. Go strings are UTF-8 byte
// sequences, so hashing the raw bytes satisfies the encoding contract, and
// fnv's uint32 accumulator never sign-extends.
func hashHex(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// summaryFields lists the parameters included in the human-readable summary,
// in fixed order. Parameters outside this list still affect the hash.
var summaryFields = []struct {
	name   string
	abbrev string
}{
	{"width", "w"},
	{"height", "h"},
	{"quality", "q"},
	{"dpr", "dpr"},
	{"fit", "fit"},
	{"gravity", "g"},
	{"blur", "blur"},
}

// ParamSummary builds the debug token list for the third key field, e.g.
// "w800-h600". Returns "default" when no summarized parameter is present.
func ParamSummary(params map[string]any) string {
	var tokens []string
	for _, f := range summaryFields {
		v, ok := params[f.name]
		if !ok {
			continue
		}
		tokens = append(tokens, f.abbrev+formatScalar(v))
	}
	if len(tokens) == 0 {
		return "default"
	}
	return sanitizeField(strings.Join(tokens, "-"))
}

// formatScalar renders a parameter value compactly. JSON-decoded numbers
// arrive as float64; integral values print without a fractional part.
func formatScalar(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// sanitizeField keeps the five-field colon contract intact for field values
// that could themselves contain a colon.
func sanitizeField(s string) string {
	return strings.ReplaceAll(s, ":", "-")
}

// Key is a parsed canonical key.
type Key struct {
	Prefix       string
	Basename     string
	ParamSummary string
	Format       string
	Hash         string
}

// String reassembles the key.
func (k Key) String() string {
	return strings.Join([]string{k.Prefix, k.Basename, k.ParamSummary, k.Format, k.Hash}, ":")
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// ParseKey splits and validates a canonical key string.
func ParseKey(s string) (Key, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 5 {
		return Key{}, fmt.Errorf("cache key %q: want 5 colon-delimited fields, got %d", s, len(fields))
	}
	k := Key{
		Prefix:       fields[0],
		Basename:     fields[1],
		ParamSummary: fields[2],
		Format:       fields[3],
		Hash:         fields[4],
	}
	if !hashPattern.MatchString(k.Hash) {
		return Key{}, fmt.Errorf("cache key %q: hash field %q is not 8 lowercase hex digits", s, k.Hash)
	}
	return k, nil
}

// ReplaceFormat derives the key of another format variant of the same
// logical resource. Valid because the hash excludes the format field.
func ReplaceFormat(key, format string) (string, error) {
	k, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	k.Format = sanitizeField(format)
	return k.String(), nil
}
