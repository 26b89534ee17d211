package rules

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var builtin embed.FS

type Clause struct {
	Name        string  `yaml:"name" json:"name"`
	Mandatory   bool    `yaml:"mandatory" json:"mandatory"`
	Default     *string `yaml:"default,omitempty" json:"default,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

type Constraint struct {
	Min         *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

type RuleSet struct {
	Key             string                `yaml:"-" json:"key"`
	ContractType    string                `yaml:"contract_type" json:"contract_type"`
	LawName         string                `yaml:"law_name" json:"law_name"`
	RequiredClauses []Clause              `yaml:"required_clauses" json:"required_clauses"`
	Constraints     map[string]Constraint `yaml:"constraints" json:"constraints"`
}

// Source names the rule set for citations, falling back to its key.
func (r RuleSet) Source() string {
	if strings.TrimSpace(r.LawName) != "" {
		return r.LawName
	}
	return r.Key
}

// ConstraintFields returns constraint keys in sorted order.
func (r RuleSet) ConstraintFields() []string {
	out := make([]string, 0, len(r.Constraints))
	for k := range r.Constraints {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Book is the set of loaded rule sets keyed by lowercase category key.
type Book struct {
	sets map[string]RuleSet
}

func NewBook(sets ...RuleSet) *Book {
	b := &Book{sets: map[string]RuleSet{}}
	for _, s := range sets {
		b.sets[s.Key] = s
	}
	return b
}

// Builtin loads the rule sets shipped with the binary.
func Builtin() (*Book, error) {
	return loadFS(builtin, "data")
}

// LoadDir reads every .yaml, .yml and .json file in dir. The file stem is
// the category key, e.g. employment.yaml.
func LoadDir(dir string) (*Book, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (*Book, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}
	b := NewBook()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		blob, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		set, err := Parse(blob)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		set.Key = strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		b.sets[set.Key] = set
	}
	return b, nil
}

// Parse decodes one rule set. JSON documents are accepted as YAML.
func Parse(blob []byte) (RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(blob, &set); err != nil {
		return RuleSet{}, err
	}
	for i, c := range set.RequiredClauses {
		if strings.TrimSpace(c.Name) == "" {
			return RuleSet{}, fmt.Errorf("required clause %d has no name", i)
		}
	}
	for field, c := range set.Constraints {
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return RuleSet{}, fmt.Errorf("constraint %s: min %v above max %v", field, *c.Min, *c.Max)
		}
	}
	return set, nil
}

func (b *Book) Get(c contract.Category) (RuleSet, bool) {
	if b == nil {
		return RuleSet{}, false
	}
	s, ok := b.sets[c.Key()]
	return s, ok
}

// Sets returns every loaded rule set ordered by key.
func (b *Book) Sets() []RuleSet {
	if b == nil {
		return nil
	}
	keys := make([]string, 0, len(b.sets))
	for k := range b.sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]RuleSet, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.sets[k])
	}
	return out
}

func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.sets)
}

// PendingFields lists mandatory clauses that carry no default. They must come
// from the user, so the tracker extracts them alongside the schema fields.
func (b *Book) PendingFields(c contract.Category) []string {
	set, ok := b.Get(c)
	if !ok {
		return nil
	}
	var out []string
	for _, cl := range set.RequiredClauses {
		if cl.Mandatory && cl.Default == nil {
			out = append(out, cl.Name)
		}
	}
	return out
}
