// Package extractschema validates extraction responses against the contract
// with the external extraction dependency. Any violation is a decode failure,
// never a crash.
package extractschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed extraction.schema.json
var extractionSchemaJSON string

// Payload is the validated shape of one extraction response.
type Payload struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Date        *string   `json:"date,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Speakers    []Speaker `json:"speakers,omitempty"`
	Companies   []Company `json:"companies,omitempty"`
	Topics      []Topic   `json:"topics,omitempty"`
}

type Speaker struct {
	Name       string   `json:"name"`
	Title      *string  `json:"title,omitempty"`
	Company    *string  `json:"company,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Company struct {
	Name       string   `json:"name"`
	Domain     *string  `json:"domain,omitempty"`
	Industry   *string  `json:"industry,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Topic struct {
	Name       string   `json:"name"`
	Category   *string  `json:"category,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateExtractionPayload decodes and validates one extraction response.
func ValidateExtractionPayload(payload json.RawMessage) (*Payload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode extraction JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize extraction JSON: %w", err)
	}

	var parsed Payload
	if err := json.Unmarshal(normalized, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal extraction payload: %w", err)
	}

	if err := validateSemantics(&parsed); err != nil {
		return nil, err
	}

	return &parsed, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("extraction.schema.json", strings.NewReader(extractionSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("extraction.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(payload *Payload) error {
	if payload == nil {
		return fmt.Errorf("payload is nil")
	}

	for i, speaker := range payload.Speakers {
		if strings.TrimSpace(speaker.Name) == "" {
			return fmt.Errorf("speakers[%d].name must not be blank", i)
		}
	}
	for i, company := range payload.Companies {
		if strings.TrimSpace(company.Name) == "" {
			return fmt.Errorf("companies[%d].name must not be blank", i)
		}
	}
	for i, topic := range payload.Topics {
		if strings.TrimSpace(topic.Name) == "" {
			return fmt.Errorf("topics[%d].name must not be blank", i)
		}
	}

	return nil
}
