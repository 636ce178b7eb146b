package constants

import "strings"

// Formats holds the allowed values for the format column in the run index.
var Formats = []string{"PDF", "IMAGE"}

// AllowedExtensions holds the default allowed file extensions for discovery.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat classifies an extension (with or without dot) as PDF or IMAGE.
// Everything non-PDF we accept is raster, so unknown extensions map to IMAGE.
func MapExtToFormat(ext string) string {
	if NormalizeExt(ext) == "pdf" {
		return PDF
	}
	return IMAGE
}
