package manifest

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	indexSchemaURL  = "https://bmeg.io/datacheck/index.schema.json"
	recordSchemaURL = "https://bmeg.io/datacheck/record.schema.json"
)

// IndexSchema describes the nested index document:
// record id -> logical key -> [relative path or null, checksum or null].
const IndexSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Dataset index",
  "type": "object",
  "additionalProperties": { "$ref": "#/definitions/fileset" },
  "definitions": {
    "fileset": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "minItems": 2,
        "maxItems": 2,
        "items": { "type": ["string", "null"] }
      }
    }
  }
}`

// RecordSchema describes one line of a JSON-lines index.
const RecordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Dataset index record",
  "type": "object",
  "required": ["id", "files"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "files": { "$ref": "` + indexSchemaURL + `#/definitions/fileset" }
  }
}`

var (
	schemaOnce   sync.Once
	indexSchema  *jsonschema.Schema
	recordSchema *jsonschema.Schema
	schemaErr    error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	if schemaErr = compiler.AddResource(indexSchemaURL, strings.NewReader(IndexSchema)); schemaErr != nil {
		return
	}
	if schemaErr = compiler.AddResource(recordSchemaURL, strings.NewReader(RecordSchema)); schemaErr != nil {
		return
	}
	if indexSchema, schemaErr = compiler.Compile(indexSchemaURL); schemaErr != nil {
		return
	}
	recordSchema, schemaErr = compiler.Compile(recordSchemaURL)
}

func lint(sch func() *jsonschema.Schema, data []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return sch().Validate(doc)
}

// LintDocument checks a JSON index document against IndexSchema.
func LintDocument(data []byte) error {
	return lint(func() *jsonschema.Schema { return indexSchema }, data)
}

// LintRecord checks a single JSON-lines record against RecordSchema.
func LintRecord(data []byte) error {
	return lint(func() *jsonschema.Schema { return recordSchema }, data)
}
