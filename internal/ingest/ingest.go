// Package ingest discovers quote documents on the local filesystem.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// File is a discovered document.
type File struct {
	Path     string
	MIMEType string
	Size     int64
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// LoadDocument reads path into a Document. Files larger than maxBytes are
// rejected when maxBytes is positive.
func LoadDocument(path string, maxBytes int64) (segment.Document, error) {
	mimeType := segment.DetectMIME(path)
	if mimeType == "" {
		return segment.Document{}, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return segment.Document{}, err
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return segment.Document{}, fmt.Errorf("%w: %s is %d bytes, limit %d", common.ErrInvalidInput, filepath.Base(path), info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return segment.Document{}, err
	}
	return segment.NewDocument(data, mimeType), nil
}
