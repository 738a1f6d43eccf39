package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ingestSchema constrains the ingest body shape. The payload itself is
// intentionally schemaless: adapters tolerate heterogeneous keys.
const ingestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["source", "payload"],
	"properties": {
		"source": {"type": "string", "minLength": 1},
		"payload": {"type": "object"}
	}
}`

var ingestBodySchema = mustCompileSchema("ingest", ingestSchema)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://crowddata.schemas.local/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("schema load failed: %v", err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("schema compile failed: %v", err))
	}
	return compiled
}
