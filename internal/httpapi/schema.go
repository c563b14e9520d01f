// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/catalog"
)

// maxBodySize bounds request bodies; catalog and account payloads are
// small.
const maxBodySize = 1 << 20

// requestModels maps schema names to the request body types they
// describe. cmd/gen-schema emits one schema file per entry.
var requestModels = map[string]any{
	"user_register": registerRequest{},
	"user_login":    loginRequest{},
	"book_create":   createBookRequest{},
	"book_update":   catalog.UpdateBookInput{},
	"genre_create":  catalog.GenreInput{},
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jschema.Schema{}
)

// SchemaNames returns the known request schema names, sorted.
func SchemaNames() []string {
	names := make([]string, 0, len(requestModels))
	for name := range requestModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateSchema generates the JSON Schema for a named request body.
func GenerateSchema(name string) ([]byte, error) {
	model, ok := requestModels[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").Errorf("unknown schema %q", name)
	}

	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(model)
	schema.ID = jsonschema.ID(schemaID(name))
	schema.Title = fmt.Sprintf("Libretto %s request", name)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_MARSHAL_FAILED").With("schema", name).Wrap(err)
	}
	return data, nil
}

func schemaID(name string) string {
	return fmt.Sprintf("https://libretto.dev/schemas/%s.schema.json", name)
}

// compiledSchema returns the compiled schema for a name, caching the
// result.
func compiledSchema(name string) (*jschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if sch, ok := schemaCache[name]; ok {
		return sch, nil
	}

	schemaBytes, err := GenerateSchema(name)
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}

	schemaCache[name] = sch
	return sch, nil
}

// decodeRequest reads and schema-validates a JSON request body into dst.
// Validation failures come back as SCHEMA_INVALID errors (400); schema
// compilation problems are internal.
func decodeRequest(r *http.Request, name string, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return oops.Code("SCHEMA_INVALID_INPUT").With("schema", name).Wrap(err)
	}
	if len(data) == 0 {
		return oops.Code("SCHEMA_INVALID_INPUT").With("schema", name).Errorf("empty request body")
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return oops.Code("SCHEMA_INVALID_INPUT").With("schema", name).Wrap(err)
	}

	sch, err := compiledSchema(name)
	if err != nil {
		return err
	}
	if err := sch.Validate(body); err != nil {
		return oops.Code("SCHEMA_INVALID_INPUT").With("schema", name).Wrap(err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return oops.Code("SCHEMA_INVALID_INPUT").With("schema", name).Wrap(err)
	}
	return nil
}
