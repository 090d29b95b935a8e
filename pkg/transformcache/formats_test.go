package transformcache

import "testing"

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{"webp", "image/webp", "webp"},
		{"avif", "image/avif", "avif"},
		{"jpeg", "image/jpeg", "jpeg"},
		{"jpg alias", "image/jpg", "jpeg"},
		{"png", "image/png", "png"},
		{"svg xml suffix", "image/svg+xml", "svg"},
		{"x- prefix", "image/x-icon", "icon"},
		{"charset parameter", "image/webp; charset=binary", "webp"},
		{"uppercase", "IMAGE/WEBP", "webp"},
		{"bare subtype", "webp", "webp"},
		{"empty", "", "bin"},
		{"slash only", "image/", "bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFromContentType(tt.contentType); got != tt.want {
				t.Errorf("FormatFromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}
