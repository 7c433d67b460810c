package llm

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// keyAliases maps lowercased keys the model has been seen to emit onto the
// canonical medication keys.
var keyAliases = map[string]string{
	"nombre":             KeyName,
	"name":               KeyName,
	"medicamento":        KeyName,
	"producto":           KeyName,
	"descripcion":        KeyName,
	"cum":                KeyRegulatoryCode,
	"codigo_cum":         KeyRegulatoryCode,
	"codigocum":          KeyRegulatoryCode,
	"invima":             KeyRegistrationID,
	"registro_sanitario": KeyRegistrationID,
	"registrosanitario":  KeyRegistrationID,
	"registro_invima":    KeyRegistrationID,
	"lote":               KeyBatch,
	"batch":              KeyBatch,
	"valorunitario":      KeyUnitPrice,
	"valor_unitario":     KeyUnitPrice,
	"precio":             KeyUnitPrice,
	"precio_unitario":    KeyUnitPrice,
	"preciounitario":     KeyUnitPrice,
	"unitprice":          KeyUnitPrice,
	"iva":                KeyTax,
	"impuesto":           KeyTax,
	"tax":                KeyTax,
	"valortotal":         KeyTotalPrice,
	"valor_total":        KeyTotalPrice,
	"total":              KeyTotalPrice,
	"precio_total":       KeyTotalPrice,
	"preciototal":        KeyTotalPrice,
}

// SanitizeMedication normalizes one decoded object from the model:
//   - renames known synonyms to the canonical keys (exact canonical keys win)
//   - coerces numbers to their literal string form
//   - drops null, empty and non-scalar values
//   - removes unknown keys
//
// It returns the cleaned object and a list of what was changed, for logging.
func SanitizeMedication(in map[string]any) (map[string]string, []string) {
	out := make(map[string]string, len(medicationKeys))
	var dropped []string

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	// Canonical spellings first, then aliases in a stable order.
	slices.SortFunc(keys, func(a, b string) int {
		ca, cb := isCanonical(a), isCanonical(b)
		if ca != cb {
			if ca {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})

	for _, k := range keys {
		canon, ok := keyAliases[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		if _, exists := out[canon]; exists {
			dropped = append(dropped, k+"(duplicate)")
			continue
		}
		s, ok := scalarString(in[k])
		if !ok {
			dropped = append(dropped, k+"(type)")
			continue
		}
		if s == "" || strings.EqualFold(s, "null") {
			dropped = append(dropped, k+"(empty)")
			continue
		}
		if k != canon {
			dropped = append(dropped, k+"->"+canon)
		}
		out[canon] = s
	}
	return out, dropped
}

func isCanonical(k string) bool {
	return slices.Contains(medicationKeys, k)
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", t), "0"), "."), true
	case int:
		return fmt.Sprintf("%d", t), true
	default:
		return "", false
	}
}
