package segment

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
)

func init() {
	// Keep pdfcpu from creating a user config directory on first use.
	model.ConfigPath = "disable"
}

// Document is a source file as received from the caller.
type Document struct {
	Data     []byte
	MIMEType string
}

// Unit is one independently extractable piece of a document: a single PDF
// page re-encoded as its own PDF, or a whole image.
type Unit struct {
	Index    int
	Data     []byte
	MIMEType string
}

// NewDocument wraps raw bytes with their declared MIME type.
func NewDocument(data []byte, mimeType string) Document {
	return Document{Data: data, MIMEType: mimeType}
}

// DetectMIME returns the MIME type implied by a filename's extension, or "".
func DetectMIME(filename string) string {
	return constants.MIMEForExt(filepath.Ext(filename))
}

// Segmenter splits documents into units.
type Segmenter struct {
	logger *slog.Logger
}

// New creates a Segmenter. Safe for concurrent use.
func New(logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{logger: logger}
}

// pdfcpu records the running command on its configuration, so each call gets its own.
func pdfConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// CountUnits returns the page count of a PDF or 1 for an image.
func (s *Segmenter) CountUnits(doc Document) (int, error) {
	switch constants.FormatForMIME(doc.MIMEType) {
	case constants.PDF:
		n, err := api.PageCount(bytes.NewReader(doc.Data), pdfConf())
		if err != nil {
			s.logger.Warn("segment.count.failed", "mime", doc.MIMEType, "bytes", len(doc.Data), "error", err)
			return 0, fmt.Errorf("%w: read pdf: %v", common.ErrMalformedDocument, err)
		}
		if n < 1 {
			return 0, fmt.Errorf("%w: pdf has no pages", common.ErrMalformedDocument)
		}
		return n, nil
	case constants.IMAGE:
		if err := checkImage(doc.Data); err != nil {
			s.logger.Warn("segment.count.failed", "mime", doc.MIMEType, "bytes", len(doc.Data), "error", err)
			return 0, err
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, doc.MIMEType)
	}
}

// ExtractUnit returns unit index (0-based). PDF pages are re-encoded as a
// standalone single-page PDF; images are returned unchanged.
func (s *Segmenter) ExtractUnit(doc Document, index int) (Unit, error) {
	total, err := s.CountUnits(doc)
	if err != nil {
		return Unit{}, err
	}
	if index < 0 || index >= total {
		return Unit{}, fmt.Errorf("%w: index %d, units %d", common.ErrIndexOutOfRange, index, total)
	}

	if constants.FormatForMIME(doc.MIMEType) == constants.IMAGE {
		return Unit{Index: index, Data: doc.Data, MIMEType: imageMIME(doc.MIMEType)}, nil
	}

	var out bytes.Buffer
	page := strconv.Itoa(index + 1)
	if err := api.Trim(bytes.NewReader(doc.Data), &out, []string{page}, pdfConf()); err != nil {
		return Unit{}, fmt.Errorf("%w: extract page %s: %v", common.ErrMalformedDocument, page, err)
	}
	s.logger.Debug("segment.unit.ok", "index", index, "total", total, "bytes", out.Len())
	return Unit{Index: index, Data: out.Bytes(), MIMEType: constants.MIMEPDF}, nil
}

func checkImage(data []byte) error {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: decode image: %v", common.ErrMalformedDocument, err)
	}
	if format != "jpeg" && format != "png" {
		return fmt.Errorf("%w: image format %q", common.ErrUnsupportedFormat, format)
	}
	return nil
}

func imageMIME(declared string) string {
	if declared == "image/jpg" {
		return constants.MIMEJPEG
	}
	return declared
}
