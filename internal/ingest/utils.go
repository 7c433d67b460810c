package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pharma-quotes/constants"
)

// AllowedExt checks if a file extension is in the allowed set (pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// MIMEFor returns the MIME type implied by path's extension.
func MIMEFor(path string) string {
	return constants.MIMEForExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
