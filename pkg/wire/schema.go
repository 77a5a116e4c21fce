package wire

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/authorize_request.schema.json
var authorizeRequestSchema []byte

const schemaURL = "https://schemas.ledgerline.dev/spendgate/authorize_request.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func requestSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(authorizeRequestSchema)); err != nil {
			schemaErr = fmt.Errorf("wire: schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateAuthorizeRequest checks a final request payload against the
// authorize schema: the exact signed field set, optional category and
// purpose, and nothing else.
func ValidateAuthorizeRequest(payload []byte) error {
	schema, err := requestSchema()
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("wire: payload is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("wire: payload violates authorize schema: %w", err)
	}
	return nil
}
