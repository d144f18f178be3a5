package bigquery

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	json "github.com/goccy/go-json"
	"github.com/hzerrad/buildable-connections/pkg/errors"
)

// ValueEncoder renders a value into DML text according to the declared type
// of its target column. The rendering rules live behind this interface so a
// parameterized-query implementation can be substituted without touching the
// statement builders.
type ValueEncoder interface {
	Encode(value interface{}, field *bigquery.FieldSchema) (string, error)
}

// LiteralEncoder is the default encoder. It interpolates values directly
// into statement text with no escaping or parameterization, preserving the
// legacy wire format. Values must come from trusted callers.
type LiteralEncoder struct{}

// Encode renders one value against its field schema.
func (e LiteralEncoder) Encode(value interface{}, field *bigquery.FieldSchema) (string, error) {
	switch field.Type {
	case bigquery.IntegerFieldType,
		bigquery.FloatFieldType,
		bigquery.NumericFieldType,
		bigquery.BigNumericFieldType,
		bigquery.BooleanFieldType:
		return fmt.Sprintf("%v", value), nil

	case bigquery.StringFieldType,
		bigquery.DateFieldType,
		bigquery.TimeFieldType,
		bigquery.DateTimeFieldType,
		bigquery.GeographyFieldType:
		return fmt.Sprintf("\"%v\"", value), nil

	case bigquery.TimestampFieldType:
		return fmt.Sprintf("timestamp(\"%v\")", value), nil

	case bigquery.JSONFieldType:
		data, err := json.Marshal(value)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeData, "failed to serialize JSON value")
		}
		return fmt.Sprintf("JSON '%s'", data), nil

	case bigquery.BytesFieldType:
		return fmt.Sprintf("CAST(\"%v\" AS BYTES)", value), nil

	case bigquery.RecordFieldType:
		return e.encodeRecord(value, field)

	default:
		return "", errors.Newf(errors.ErrorTypeUnknownType,
			"unknown field type %q for column %q", field.Type, field.Name)
	}
}

// encodeRecord renders a nested record as STRUCT(field=value, ...), applying
// each sub-field's own rule. Sub-fields render in the schema's declared
// order restricted to the keys present in the value.
func (e LiteralEncoder) encodeRecord(value interface{}, field *bigquery.FieldSchema) (string, error) {
	record, ok := value.(map[string]interface{})
	if !ok {
		return "", errors.Newf(errors.ErrorTypeValidation,
			"value for record column %q must be an object", field.Name)
	}

	byName := make(map[string]*bigquery.FieldSchema, len(field.Schema))
	for _, sub := range field.Schema {
		byName[sub.Name] = sub
	}
	for name := range record {
		if _, ok := byName[name]; !ok {
			return "", errors.Newf(errors.ErrorTypeSchema,
				"field %q is not declared on record %q", name, field.Name)
		}
	}

	parts := make([]string, 0, len(record))
	for _, sub := range field.Schema {
		v, ok := record[sub.Name]
		if !ok {
			continue
		}
		rendered, err := e.Encode(v, sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, sub.Name+"="+rendered)
	}

	return "STRUCT(" + strings.Join(parts, ", ") + ")", nil
}
