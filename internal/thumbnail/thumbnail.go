// Package thumbnail derives display URLs for character images.
package thumbnail

import (
	"strings"

	"github.com/starford/roster/internal/models"
)

// Defaults used when a Resolver is created with empty values.
const (
	DefaultVariant  = "standard_xlarge"
	DefaultFallback = "/assets/images/image-not-available.jpg"
	missingMarker   = "image_not_available"
)

// Resolver turns a Thumbnail into a URL.
type Resolver struct {
	Variant  string
	Fallback string
}

// NewResolver returns a Resolver, filling empty fields with defaults.
func NewResolver(variant, fallback string) Resolver {
	if variant == "" {
		variant = DefaultVariant
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	return Resolver{Variant: variant, Fallback: fallback}
}

// URL returns the image URL for t, or the fallback asset when t is missing,
// incomplete, or points at the upstream placeholder image.
func (r Resolver) URL(t *models.Thumbnail) string {
	if t == nil || t.Path == "" || t.Extension == "" {
		return r.Fallback
	}
	if strings.Contains(t.Path, missingMarker) {
		return r.Fallback
	}
	path := t.Path
	if strings.HasPrefix(path, "http://") {
		path = "https://" + strings.TrimPrefix(path, "http://")
	}
	return path + "/" + r.Variant + "." + t.Extension
}
