package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/kontrata/internal/contract"
)

// Source supplies a field table for a category.
type Source interface {
	Fields(c contract.Category) ([]Field, error)
}

var ErrNoTable = errors.New("no field table for category")

type staticSource struct{}

func (staticSource) Fields(c contract.Category) ([]Field, error) {
	fields, ok := Tables[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, c)
	}
	return fields, nil
}

// Resolver answers which fields a category collects. Override sources are
// consulted first; any failure falls back to the built-in tables.
type Resolver struct {
	overrides []Source
	static    Source
}

func NewResolver(overrides ...Source) *Resolver {
	return &Resolver{overrides: overrides, static: staticSource{}}
}

// Fields returns every collectable field for the category, required and
// optional, deduplicated in first-seen order.
func (r *Resolver) Fields(c contract.Category) []Field {
	for _, src := range r.overrides {
		fields, err := src.Fields(c)
		if err != nil {
			if !errors.Is(err, ErrNoTable) {
				slog.Warn("schema_fallback", "category", string(c), "error", err)
			}
			continue
		}
		if len(fields) > 0 {
			return clean(fields)
		}
	}
	fields, err := r.static.Fields(c)
	if err != nil {
		return nil
	}
	return clean(fields)
}

// Required returns the ordered required field names.
func (r *Resolver) Required(c contract.Category) []string {
	var out []string
	for _, f := range r.Fields(c) {
		if f.Required() {
			out = append(out, f.Name)
		}
	}
	return out
}

func (r *Resolver) Lookup(c contract.Category, name string) (Field, bool) {
	for _, f := range r.Fields(c) {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func clean(fields []Field) []Field {
	seen := make(map[string]bool, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" || Reserved[f.Name] || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	return out
}

// FileSource reads field tables from a YAML document keyed by category.
type FileSource struct {
	tables map[contract.Category][]Field
}

type fileField struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Default     string   `yaml:"default"`
	DefaultKind string   `yaml:"default_kind"`
	Multi       bool     `yaml:"multi"`
}

func LoadFile(path string) (*FileSource, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return ParseFile(blob)
}

func ParseFile(blob []byte) (*FileSource, error) {
	var raw map[string][]fileField
	if err := yaml.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	src := &FileSource{tables: map[contract.Category][]Field{}}
	for key, entries := range raw {
		cat, ok := contract.ParseCategory(key)
		if !ok {
			return nil, fmt.Errorf("schema file: unknown category %q", key)
		}
		fields := make([]Field, 0, len(entries))
		for _, e := range entries {
			kind := ClassifyDefault(e.Default)
			if e.DefaultKind != "" {
				k, err := ParseDefaultKind(e.DefaultKind)
				if err != nil {
					return nil, fmt.Errorf("schema file %s.%s: %w", key, e.Name, err)
				}
				kind = k
			}
			fields = append(fields, Field{
				Name:        e.Name,
				Aliases:     e.Aliases,
				Default:     e.Default,
				DefaultKind: kind,
				Multi:       e.Multi || KindOf(e.Name) == KindParties,
			})
		}
		src.tables[cat] = fields
	}
	return src, nil
}

func (s *FileSource) Fields(c contract.Category) ([]Field, error) {
	fields, ok := s.tables[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, c)
	}
	return fields, nil
}
