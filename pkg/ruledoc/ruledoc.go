// Package ruledoc validates and decodes the operation envelopes clients
// submit: static loads and dynamic/session updates. Envelopes are checked
// against JSON Schemas at the boundary, so unknown or mistyped envelope
// fields are rejected before any business logic runs. The rule entries
// inside an envelope keep the rule package's permissive per-entry contract:
// invalid entries are skipped and reported, not fatal.
package ruledoc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nook-browser/shield/pkg/errdefs"
	"github.com/nook-browser/shield/pkg/rule"
)

// Envelope schemas. Rule entries are validated by the rule parser, not
// here; the schemas pin the envelope shape only.
const (
	staticLoadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["client", "rules"],
  "additionalProperties": false,
  "properties": {
    "client": {"type": "string", "minLength": 1},
    "rules": {"type": "array", "items": {"type": "object"}}
  }
}`

	updateSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["client"],
  "additionalProperties": false,
  "properties": {
    "client": {"type": "string", "minLength": 1},
    "add": {"type": "array", "items": {"type": "object"}},
    "removeIds": {"type": "array", "items": {"type": "integer"}}
  }
}`
)

var (
	compileOnce    sync.Once
	staticCompiled *jsonschema.Schema
	updateCompiled *jsonschema.Schema
)

func compileSchemas() {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		add := func(name, schema string) *jsonschema.Schema {
			url := fmt.Sprintf("https://shield.schemas.local/ruledoc/%s.schema.json", name)
			if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
				panic(fmt.Sprintf("envelope schema load %s: %v", name, err))
			}
			return c.MustCompile(url)
		}
		staticCompiled = add("static-load", staticLoadSchema)
		updateCompiled = add("update", updateSchema)
	})
}

// StaticLoad is a decoded static-load envelope.
type StaticLoad struct {
	Client string
	Rules  []rule.Rule
	Issues []rule.Issue
}

// Update is a decoded dynamic/session update envelope.
type Update struct {
	Client    string
	Add       []rule.Rule
	RemoveIDs []int
	Issues    []rule.Issue
}

// DecodeStaticLoad validates and decodes a static-load envelope.
func DecodeStaticLoad(data []byte) (*StaticLoad, error) {
	compileSchemas()

	doc, err := validate(staticCompiled, data, "static load")
	if err != nil {
		return nil, err
	}

	var env struct {
		Client string            `json:"client"`
		Rules  []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidRule, "", err)
	}

	rules, issues := rule.ParseRawRules(env.Rules)
	return &StaticLoad{Client: env.Client, Rules: rules, Issues: issues}, nil
}

// DecodeUpdate validates and decodes an update envelope. The same shape
// serves the dynamic and session tiers; the operation the envelope arrived
// on decides which.
func DecodeUpdate(data []byte) (*Update, error) {
	compileSchemas()

	doc, err := validate(updateCompiled, data, "update")
	if err != nil {
		return nil, err
	}

	var env struct {
		Client    string            `json:"client"`
		Add       []json.RawMessage `json:"add"`
		RemoveIDs []int             `json:"removeIds"`
	}
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidRule, "", err)
	}

	add, issues := rule.ParseRawRules(env.Add)
	return &Update{Client: env.Client, Add: add, RemoveIDs: env.RemoveIDs, Issues: issues}, nil
}

// validate checks data against the compiled schema and returns the raw
// document on success. Schema failures are envelope-scoped hard errors,
// classified as invalid rule input.
func validate(schema *jsonschema.Schema, data []byte, what string) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errdefs.Newf(errdefs.KindInvalidRule, "", "%s envelope is not valid JSON: %v", what, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, errdefs.Newf(errdefs.KindInvalidRule, "", "%s envelope rejected: %v", what, err)
	}
	return data, nil
}
