// Package schema declares the shape of structured model output: the field
// list, a compiled JSON Schema for validation, typed decoding, and the
// per-field default policy used when extraction gives up.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

type Kind string

const (
	Text    Kind = "text"
	Integer Kind = "integer"
	Number  Kind = "number"
	Boolean Kind = "boolean"
	List    Kind = "list"
	Mapping Kind = "mapping"
	Choice  Kind = "choice"
	Object  Kind = "object"
)

type Field struct {
	Name        string   `yaml:"name"`
	Kind        Kind     `yaml:"kind"`
	Description string   `yaml:"description,omitempty"`
	Choices     []string `yaml:"choices,omitempty"`
	// Items is the element kind of a list; empty means any.
	Items  Kind    `yaml:"items,omitempty"`
	Fields []Field `yaml:"fields,omitempty"`
	// Optional fields may be missing from extracted values. Synthesized
	// defaults still fill them.
	Optional bool `yaml:"optional,omitempty"`
	// Default overrides the kind-based default policy.
	Default any `yaml:"default,omitempty"`
}

// Schema is immutable after New.
type Schema struct {
	name        string
	description string
	fields      []Field
	policy      []rule

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// New validates the field list and fixes the default policy for each field.
func New(name, description string, fields ...Field) (*Schema, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("schema: name is required")
	}
	if err := checkFields(name, fields); err != nil {
		return nil, err
	}
	s := &Schema{name: name, description: description, fields: fields}
	s.policy = buildPolicy(fields)
	return s, nil
}

// MustNew is New for package-level built-ins.
func MustNew(name, description string, fields ...Field) *Schema {
	s, err := New(name, description, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func checkFields(path string, fields []Field) error {
	seen := map[string]bool{}
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("schema %s: field name is required", path)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", path, f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case Text, Integer, Number, Boolean, List, Mapping:
		case Choice:
			if len(f.Choices) == 0 {
				return fmt.Errorf("schema %s: choice field %q needs allowed values", path, f.Name)
			}
		case Object:
			if err := checkFields(path+"."+f.Name, f.Fields); err != nil {
				return err
			}
		default:
			return fmt.Errorf("schema %s: field %q has unknown kind %q", path, f.Name, f.Kind)
		}
	}
	return nil
}

func (s *Schema) Name() string        { return s.name }
func (s *Schema) Description() string { return s.description }

func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Required lists the names every extracted value must carry.
func (s *Schema) Required() []string {
	return requiredOf(s.fields)
}

func requiredOf(fields []Field) []string {
	var out []string
	for _, f := range fields {
		if !f.Optional {
			out = append(out, f.Name)
		}
	}
	return out
}

// JSONSchema renders the schema as a JSON Schema document. Fields whose
// default is null accept null so synthesized instances always validate.
func (s *Schema) JSONSchema() map[string]any {
	doc := objectSchema(s.fields)
	doc["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	doc["title"] = s.name
	if s.description != "" {
		doc["description"] = s.description
	}
	return doc
}

func objectSchema(fields []Field) map[string]any {
	props := map[string]any{}
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := requiredOf(fields); len(req) > 0 {
		doc["required"] = req
	}
	return doc
}

func fieldSchema(f Field) map[string]any {
	var out map[string]any
	switch f.Kind {
	case Text:
		out = map[string]any{"type": "string"}
	case Integer:
		out = map[string]any{"type": "integer"}
	case Number:
		out = map[string]any{"type": "number"}
	case Boolean:
		out = map[string]any{"type": []string{"boolean", "null"}}
	case Mapping:
		out = map[string]any{"type": "object"}
	case Choice:
		enum := make([]any, len(f.Choices))
		for i, c := range f.Choices {
			enum[i] = c
		}
		out = map[string]any{"enum": enum}
	case List:
		out = map[string]any{"type": []string{"array", "null"}}
		if f.Items != "" {
			out["items"] = fieldSchema(Field{Kind: f.Items, Choices: f.Choices})
		}
	case Object:
		out = objectSchema(f.Fields)
		out["type"] = []string{"object", "null"}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.compileOnce.Do(func() {
		raw, err := json.Marshal(s.JSONSchema())
		if err != nil {
			s.compileErr = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			s.compileErr = err
			return
		}
		url := s.name + ".schema.json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			s.compileErr = err
			return
		}
		s.compiled, s.compileErr = c.Compile(url)
	})
	return s.compiled, s.compileErr
}

// Validate checks v against the compiled JSON Schema. v may hold any Go
// values that encoding/json can marshal.
func (s *Schema) Validate(v any) error {
	sch, err := s.compile()
	if err != nil {
		return fmt.Errorf("schema %s: compile: %w", s.name, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	return nil
}

// Decode copies a validated value into out, converting loosely typed
// numbers and strings the way model output usually needs.
func Decode(v map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v)
}

// Instruction is the system-message text that asks the model for JSON
// matching s.
func (s *Schema) Instruction() string {
	raw, _ := json.MarshalIndent(s.JSONSchema(), "", "  ")
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON object that conforms to this JSON Schema. Do not add commentary.\n")
	sb.Write(raw)
	return sb.String()
}
