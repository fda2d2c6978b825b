package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nook-browser/shield/pkg/canonical"
)

// documentSchema validates serialized content-blocker documents before they
// are accepted for storage. The real matching runtime rejects malformed
// documents too; validating here keeps the reference service honest.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["trigger", "action"],
    "additionalProperties": false,
    "properties": {
      "trigger": {
        "type": "object",
        "required": ["url-filter"],
        "additionalProperties": false,
        "properties": {
          "url-filter": {"type": "string", "minLength": 1},
          "url-filter-is-case-sensitive": {"type": "boolean"},
          "if-domain": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "unless-domain": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "resource-type": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "load-type": {"type": "array", "items": {"type": "string"}, "minItems": 1}
        },
        "not": {"required": ["if-domain", "unless-domain"]}
      },
      "action": {
        "type": "object",
        "required": ["type"],
        "additionalProperties": false,
        "properties": {
          "type": {"enum": ["block", "ignore-previous-rules", "make-https"]}
        }
      }
    }
  }
}`

var (
	compiledDocumentSchema *jsonschema.Schema
	documentSchemaOnce     sync.Once
)

func documentValidator() *jsonschema.Schema {
	documentSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const schemaURL = "https://shield.schemas.local/contentblocker.schema.json"
		if err := c.AddResource(schemaURL, strings.NewReader(documentSchema)); err != nil {
			panic(fmt.Sprintf("content-blocker schema load: %v", err))
		}
		compiledDocumentSchema = c.MustCompile(schemaURL)
	})
	return compiledDocumentSchema
}

// StoreService is the in-repo reference compilation service: it validates a
// serialized document against the content-blocker schema, canonicalizes it,
// and persists it to a blob Store under the caller's identifier. Any runtime
// honoring the compiler.Service contract can replace it.
type StoreService struct {
	store  Store
	logger *slog.Logger
}

// NewStoreService wires a StoreService to a blob store.
func NewStoreService(store Store) *StoreService {
	return &StoreService{
		store:  store,
		logger: slog.Default().With("component", "artifact.service"),
	}
}

// Compile validates, canonicalizes, and stores the document, returning the
// artifact handle for the stored revision. The same identifier always maps
// to the latest revision; compiling twice with identical content yields the
// same content hash.
func (s *StoreService) Compile(ctx context.Context, identifier string, document []byte) (*Artifact, error) {
	if identifier == "" {
		return nil, fmt.Errorf("empty artifact identifier")
	}

	var doc any
	if err := json.Unmarshal(bytes.TrimSpace(document), &doc); err != nil {
		return nil, fmt.Errorf("document is not valid JSON: %w", err)
	}
	if err := documentValidator().Validate(doc); err != nil {
		return nil, fmt.Errorf("document rejected by content-blocker schema: %w", err)
	}

	fragments, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("document is not a fragment array")
	}

	canon, err := canonical.Transform(document)
	if err != nil {
		return nil, fmt.Errorf("canonicalize document: %w", err)
	}

	if err := s.store.Put(ctx, identifier, canon); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	art := &Artifact{
		Identifier:    identifier,
		ContentHash:   canonical.HashBytes(canon),
		Size:          len(canon),
		FragmentCount: len(fragments),
		CompiledAt:    time.Now().UTC(),
	}
	s.logger.Debug("document compiled",
		"identifier", identifier, "hash", art.ContentHash, "fragments", art.FragmentCount)
	return art, nil
}

// Remove deletes the identifier's stored document. Removing an identifier
// that was never compiled is not an error.
func (s *StoreService) Remove(ctx context.Context, identifier string) error {
	if err := s.store.Delete(ctx, identifier); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}
