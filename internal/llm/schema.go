package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Medication JSON keys as the extraction prompt requests them.
const (
	KeyName           = "nombre"
	KeyRegulatoryCode = "cum"
	KeyRegistrationID = "invima"
	KeyBatch          = "lote"
	KeyUnitPrice      = "valorUnitario"
	KeyTax            = "iva"
	KeyTotalPrice     = "valorTotal"
)

var medicationKeys = []string{KeyName, KeyRegulatoryCode, KeyRegistrationID, KeyBatch, KeyUnitPrice, KeyTax, KeyTotalPrice}

// BuildMedicationJSONSchema returns the JSON-Schema for one sanitized medication object.
func BuildMedicationJSONSchema() map[string]any {
	props := make(map[string]any, len(medicationKeys))
	for _, k := range medicationKeys {
		props[k] = map[string]any{"type": "string", "minLength": 1}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{KeyName},
	}
}

var (
	medicationSchemaOnce sync.Once
	medicationSchema     *jsonschema.Schema
	medicationSchemaErr  error
)

// ValidateMedication validates one sanitized object against the medication schema.
func ValidateMedication(v map[string]any) error {
	medicationSchemaOnce.Do(func() {
		medicationSchema, medicationSchemaErr = compileSchema(BuildMedicationJSONSchema())
	})
	if medicationSchemaErr != nil {
		return medicationSchemaErr
	}
	if err := medicationSchema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
