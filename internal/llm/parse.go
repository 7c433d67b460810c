package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
)

var reFence = regexp.MustCompile("```(?:json|JSON)?[ \t]*\r?\n?")

// ParseMedications converts a raw extraction reply into records. It accepts a
// JSON array of objects, a single object, or null/[] (no records), optionally
// wrapped in markdown code fences. When the reply cannot be decoded it fails
// open: one Degraded record whose Name is the raw text.
func ParseMedications(raw string, logger *slog.Logger) []entity.MedicationRecord {
	if logger == nil {
		logger = slog.Default()
	}

	objects, err := decodeObjects(raw)
	if err != nil {
		logger.Warn("llm.parse.degraded", "error", err, "raw_len", len(raw))
		rec := entity.NewMedicationRecord()
		rec.Normalize()
		if strings.TrimSpace(raw) != "" {
			rec.Name = raw
		}
		rec.Degraded = true
		return []entity.MedicationRecord{rec}
	}

	records := make([]entity.MedicationRecord, 0, len(objects))
	for i, obj := range objects {
		clean, changed := SanitizeMedication(obj)
		if len(changed) > 0 {
			logger.Debug("llm.parse.sanitized", "index", i, "changes", changed)
		}
		if err := ValidateMedication(toAny(clean)); err != nil {
			logger.Warn("llm.parse.schema_violation", "index", i, "error", err)
		}
		records = append(records, recordFrom(clean))
	}
	return records
}

// StripFences removes markdown code-fence markers and surrounding whitespace.
func StripFences(raw string) string {
	return strings.TrimSpace(reFence.ReplaceAllString(raw, ""))
}

func decodeObjects(raw string) ([]map[string]any, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, errors.New("empty reply")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode: trailing data after JSON value")
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, el := range t {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("decode: element %d is %T, not an object", i, el)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode: top-level %T is neither array nor object", v)
	}
}

func recordFrom(m map[string]string) entity.MedicationRecord {
	rec := entity.MedicationRecord{
		Name:           m[KeyName],
		RegulatoryCode: m[KeyRegulatoryCode],
		RegistrationID: m[KeyRegistrationID],
		Batch:          m[KeyBatch],
		UnitPrice:      m[KeyUnitPrice],
		Tax:            m[KeyTax],
		TotalPrice:     m[KeyTotalPrice],
	}
	rec.Normalize()
	return rec
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EncodeMedications is the inverse of ParseMedications for well-formed records.
func EncodeMedications(records []entity.MedicationRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
