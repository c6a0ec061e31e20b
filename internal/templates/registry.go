package templates

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evalIA/property-import-service/internal/models"
)

//go:embed data/*.yaml
var dataFS embed.FS

const commonFile = "common.yaml"

// FieldSpec describes one field a template asks the model to populate
type FieldSpec struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Example is a worked input -> output pair steering the model toward the JSON shape
type Example struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

// Template is the instruction set for one document type. Templates are shared; do not modify.
type Template struct {
	DocumentType models.DocumentType `yaml:"document_type" json:"documentType"`
	Label        string              `yaml:"label" json:"label"`
	Description  string              `yaml:"description" json:"description"`
	MultiRecord  bool                `yaml:"multi_record" json:"multiRecord"`
	Fields       []FieldSpec         `yaml:"fields" json:"fields"`
	Rules        []string            `yaml:"rules" json:"rules"`
	Examples     []Example           `yaml:"examples" json:"examples"`

	common *commonRules
}

type commonRules struct {
	Preamble string   `yaml:"preamble"`
	Rules    []string `yaml:"rules"`
}

// Registry is a lookup table of templates keyed by document type
type Registry struct {
	templates map[models.DocumentType]*Template
}

var defaultRegistry = mustLoad()

// Get returns the template for a document type from the embedded registry
func Get(dt models.DocumentType) (*Template, error) {
	return defaultRegistry.Get(dt)
}

// All returns every embedded template in document-type order
func All() []*Template {
	return defaultRegistry.All()
}

// Default returns the embedded registry
func Default() *Registry {
	return defaultRegistry
}

// Get returns the template for a document type
func (r *Registry) Get(dt models.DocumentType) (*Template, error) {
	t, ok := r.templates[dt]
	if !ok {
		return nil, fmt.Errorf("no template for document type %q", dt)
	}
	return t, nil
}

// All returns templates in document-type order
func (r *Registry) All() []*Template {
	out := make([]*Template, 0, len(r.templates))
	for _, dt := range models.AllDocumentTypes() {
		if t, ok := r.templates[dt]; ok {
			out = append(out, t)
		}
	}
	return out
}

func mustLoad() *Registry {
	r, err := Load(dataFS, "data")
	if err != nil {
		panic(fmt.Sprintf("templates: %v", err))
	}
	return r
}

// Load reads common.yaml plus one YAML document per document type from dir
func Load(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template dir: %w", err)
	}

	common := &commonRules{}
	raw, err := fs.ReadFile(fsys, path.Join(dir, commonFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", commonFile, err)
	}
	if err := yaml.Unmarshal(raw, common); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", commonFile, err)
	}

	r := &Registry{templates: make(map[models.DocumentType]*Template)}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == commonFile || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := r.templates[t.DocumentType]; dup {
			return nil, fmt.Errorf("%s: duplicate template for %q", name, t.DocumentType)
		}
		t.common = common
		r.templates[t.DocumentType] = &t
	}

	for _, dt := range models.AllDocumentTypes() {
		if _, ok := r.templates[dt]; !ok {
			return nil, fmt.Errorf("missing template for document type %q", dt)
		}
	}
	return r, nil
}

func (t *Template) validate() error {
	if _, ok := models.ParseDocumentType(string(t.DocumentType)); !ok {
		return fmt.Errorf("unknown document type %q", t.DocumentType)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("template %q has no fields", t.DocumentType)
	}
	allowed := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if !models.IsKnownField(f.Name) {
			return fmt.Errorf("template %q: unknown field %q", t.DocumentType, f.Name)
		}
		allowed[f.Name] = true
	}
	for i, ex := range t.Examples {
		var out struct {
			Properties []map[string]interface{} `json:"properties"`
		}
		if err := json.Unmarshal([]byte(ex.Output), &out); err != nil {
			return fmt.Errorf("template %q example %d: invalid JSON output: %w", t.DocumentType, i, err)
		}
		if !t.MultiRecord && len(out.Properties) != 1 {
			return fmt.Errorf("template %q example %d: single-record template must yield one record", t.DocumentType, i)
		}
		for _, rec := range out.Properties {
			for k := range rec {
				if !allowed[k] {
					return fmt.Errorf("template %q example %d: field %q not declared", t.DocumentType, i, k)
				}
			}
		}
	}
	return nil
}

// FieldNames returns the declared field names in order
func (t *Template) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// SystemPrompt renders the instruction template sent as the system message
func (t *Template) SystemPrompt() string {
	var b strings.Builder

	if t.common != nil && t.common.Preamble != "" {
		b.WriteString(strings.TrimSpace(t.common.Preamble))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "## DOCUMENT TYPE\n%s (%s)\n%s\n\n", t.Label, t.DocumentType, strings.TrimSpace(t.Description))

	if t.MultiRecord {
		b.WriteString("This document may describe several properties: return one object per property.\n\n")
	} else {
		b.WriteString("This document describes exactly one property: return exactly one object.\n\n")
	}

	b.WriteString("## FIELDS\n")
	for _, f := range t.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Description)
	}

	b.WriteString("\n## RULES\n")
	if t.common != nil {
		for _, rule := range t.common.Rules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
	}
	for _, rule := range t.Rules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}

	if len(t.Examples) > 0 {
		b.WriteString("\n## EXAMPLES\n")
		for i, ex := range t.Examples {
			fmt.Fprintf(&b, "Example %d input:\n%s\nExample %d output:\n%s\n",
				i+1, strings.TrimSpace(ex.Input), i+1, strings.TrimSpace(ex.Output))
		}
	}

	return b.String()
}
