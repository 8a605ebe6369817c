package anchor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the JSON type a schema field must carry.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

func (k Kind) jsonType() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "string"
	}
}

// Field is one leaf of a canonical document.
type Field struct {
	Name string
	Kind Kind
	// AllowEmpty lets a string field be "" without failing validation.
	AllowEmpty bool
}

// Section is a top-level object of a canonical document. Sections and their
// fields are serialized in declaration order.
type Section struct {
	Name   string
	Fields []Field
}

// Selector addresses a sensitive leaf as "section.field".
type Selector string

func (s Selector) split() (string, string, bool) {
	section, field, ok := strings.Cut(string(s), ".")
	return section, field, ok && section != "" && field != ""
}

// Schema fixes the field set, the field order and the sensitive selectors of
// a canonical document. Adding, removing or reordering anything requires a
// new Version, otherwise fingerprints already anchored stop matching.
type Schema struct {
	Version   string
	Sections  []Section
	Sensitive []Selector

	once      sync.Once
	validator *gojsonschema.Schema
	buildErr  error
}

// HorseRecordV1 is the record joined from the horse, its registration, breeding
// and measurement rows. Keys keep the wire names already used by anchored
// records.
var HorseRecordV1 = &Schema{
	Version: "horse-record/v1",
	Sections: []Section{
		{Name: "cavalo", Fields: []Field{
			{Name: "nome"},
			{Name: "sexo"},
			{Name: "data_nascimento"},
			{Name: "raca"},
			{Name: "microchip"},
		}},
		{Name: "registro", Fields: []Field{
			{Name: "tipo"},
			{Name: "numero_registro"},
			{Name: "situacao"},
			{Name: "data_registro"},
		}},
		{Name: "criacao", Fields: []Field{
			{Name: "criador"},
			{Name: "proprietario"},
			{Name: "haras"},
			{Name: "cidade"},
			{Name: "estado"},
		}},
		{Name: "mensuracao", Fields: []Field{
			{Name: "pelagem"},
			{Name: "altura_cernelha_m", Kind: KindNumber},
			{Name: "comprimento_corpo_m", Kind: KindNumber},
			{Name: "perimetro_torax_m", Kind: KindNumber},
			{Name: "particularidades", AllowEmpty: true},
			{Name: "dna_confirmado", Kind: KindBool},
			{Name: "veterinario"},
		}},
		{Name: "genealogia", Fields: []Field{
			{Name: "pai"},
			{Name: "mae"},
		}},
	},
	Sensitive: []Selector{"cavalo.microchip"},
}

// DefaultSchemaVersion is used when settings do not name one.
const DefaultSchemaVersion = "horse-record/v1"

var schemas = map[string]*Schema{
	HorseRecordV1.Version: HorseRecordV1,
}

// LookupSchema returns the registered schema for version.
func LookupSchema(version string) (*Schema, error) {
	s, ok := schemas[version]
	if !ok {
		return nil, fmt.Errorf("%w: unknown schema version %q", ErrInvalidDocument, version)
	}
	return s, nil
}

// SchemaVersions lists the registered versions.
func SchemaVersions() []string {
	versions := make([]string, 0, len(schemas))
	for v := range schemas {
		versions = append(versions, v)
	}
	return versions
}

// JSONSchema renders the schema as a draft-07 JSON Schema document. Objects
// are closed (no additional properties) and every field is required.
func (s *Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Sections))
	required := make([]any, 0, len(s.Sections))
	for _, section := range s.Sections {
		fieldProps := make(map[string]any, len(section.Fields))
		fieldRequired := make([]any, 0, len(section.Fields))
		for _, f := range section.Fields {
			prop := map[string]any{"type": f.Kind.jsonType()}
			if f.Kind == KindString && !f.AllowEmpty {
				prop["minLength"] = 1
			}
			fieldProps[f.Name] = prop
			fieldRequired = append(fieldRequired, f.Name)
		}
		properties[section.Name] = map[string]any{
			"type":                 "object",
			"properties":           fieldProps,
			"required":             fieldRequired,
			"additionalProperties": false,
		}
		required = append(required, section.Name)
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"$id":                  s.Version,
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Validate checks doc against the schema and reports every violation in one
// ErrInvalidDocument.
func (s *Schema) Validate(doc Document) error {
	s.once.Do(func() {
		s.validator, s.buildErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	})
	if s.buildErr != nil {
		return fmt.Errorf("schema %s: %w", s.Version, s.buildErr)
	}
	result, err := s.validator.Validate(gojsonschema.NewGoLoader(map[string]any(doc)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidDocument, s.Version, strings.Join(problems, "; "))
}
