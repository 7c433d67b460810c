package constants

import "strings"

// Document formats accepted by the segmenter.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// MIME types understood by the extraction service.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// AllowedExtensions holds the file extensions accepted for quote documents.
var AllowedExtensions = map[string]string{
	"pdf":  MIMEPDF,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MIMEForExt returns the MIME type for an extension, or "" when unsupported.
func MIMEForExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// FormatForMIME maps a MIME type to PDF or IMAGE ("" when unsupported).
func FormatForMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case MIMEPDF:
		return PDF
	case MIMEJPEG, "image/jpg", MIMEPNG:
		return IMAGE
	default:
		return ""
	}
}
