package properties

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/craftplane/craftplane/internal/core/domain"
)

const fileName = "server.properties"

// Store persists one configuration document per instance under
// <root>/<instance id>/server.properties.
type Store struct {
	root    string
	fieldTo map[string]string // API field name -> properties key
}

// NewStore builds a store rooted at root. The field mapping table is
// validated here so a bad table stops the service at startup.
func NewStore(root string) (*Store, error) {
	byName, err := validateFields(Fields)
	if err != nil {
		return nil, err
	}
	return &Store{root: root, fieldTo: byName}, nil
}

func (s *Store) path(instanceID string) string {
	return filepath.Join(s.root, instanceID, fileName)
}

// Read parses the instance's document. A missing file maps to ErrNotFound.
func (s *Store) Read(instanceID string) (*Document, error) {
	data, err := os.ReadFile(s.path(instanceID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no configuration for instance %s", domain.ErrNotFound, instanceID)
		}
		return nil, fmt.Errorf("read properties: %w", err)
	}
	return ParseDocument(string(data)), nil
}

// Write atomically replaces the document: the new contents land in a temp
// file in the same directory and are renamed over the old file, so a
// concurrent reader sees either the old document or the new one.
func (s *Store) Write(instanceID string, doc *Document) error {
	path := s.path(instanceID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}
	tmp, err := os.CreateTemp(dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("write properties: %w", err)
	}
	if _, err := tmp.WriteString(doc.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write properties: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write properties: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write properties: %w", err)
	}
	return nil
}

// MergeUpdate applies updates, keyed by API field name, onto doc. Every
// field name must be present in the mapping table; an unknown name is an
// error, not a silent skip. Keys in the document that the table does not
// cover are left exactly as they are.
func (s *Store) MergeUpdate(doc *Document, updates map[string]string) error {
	for name, value := range updates {
		key, ok := s.fieldTo[name]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", name)
		}
		doc.Set(key, value)
	}
	return nil
}

// FieldValues projects the document onto the API field names, for the
// configuration read endpoint. Only mapped keys appear.
func (s *Store) FieldValues(doc *Document) map[string]string {
	out := make(map[string]string, len(s.fieldTo))
	for name, key := range s.fieldTo {
		if v, ok := doc.Get(key); ok {
			out[name] = v
		}
	}
	return out
}
