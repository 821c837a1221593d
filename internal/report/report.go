// Package report turns the plaintext output of four-letter-word commands
// into typed status reports.
//
// Extraction is declarative: a FieldSpec names a field, the patterns that
// can locate it on a line and the type its value is coerced to. Built-in
// rule sets live in rules/*.yaml.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValueType is the coercion applied to an extracted value.
type ValueType string

const (
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeEnum   ValueType = "enum"
	TypeString ValueType = "string"
)

// FieldSpec describes how to extract one field.
//
// Keys is shorthand for patterns matching "key<TAB>value", "key value" and
// "key: value" lines. Patterns are raw regular expressions with exactly one
// capture group.
type FieldSpec struct {
	Name     string    `yaml:"name"`
	Keys     []string  `yaml:"keys,omitempty"`
	Patterns []string  `yaml:"patterns,omitempty"`
	Type     ValueType `yaml:"type"`
	Enum     []string  `yaml:"enum,omitempty"`
	Required bool      `yaml:"required,omitempty"`
	Default  string    `yaml:"default,omitempty"`
}

// Value is a coerced field value.
type Value struct {
	Raw   string
	Type  ValueType
	Int   int64
	Float float64
}

// Number returns the value as a float64 for int and float fields.
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.Int), true
	case TypeFloat:
		return v.Float, true
	}
	return 0, false
}

// Pair is one tokenized line of a response.
type Pair struct {
	Key   string
	Value string
}

// Report is the parsed form of one node response.
type Report struct {
	Pairs  []Pair
	values map[string]Value
}

// Get returns the extracted value of a field.
func (r *Report) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the field was extracted or defaulted.
func (r *Report) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Number returns a numeric field as float64.
func (r *Report) Number(name string) (float64, bool) {
	v, ok := r.values[name]
	if !ok {
		return 0, false
	}
	return v.Number()
}

// Int returns an int field.
func (r *Report) Int(name string) (int64, bool) {
	v, ok := r.values[name]
	if !ok || v.Type != TypeInt {
		return 0, false
	}
	return v.Int, true
}

// String returns the raw text of a field.
func (r *Report) String(name string) (string, bool) {
	v, ok := r.values[name]
	return v.Raw, ok
}

type rule struct {
	spec     FieldSpec
	patterns []*regexp.Regexp
	fallback *Value
}

// Rules is a compiled, ordered set of field specs.
type Rules struct {
	rules []rule
}

// Fields returns the field names in declaration order.
func (r *Rules) Fields() []string {
	names := make([]string, len(r.rules))
	for i, rl := range r.rules {
		names[i] = rl.spec.Name
	}
	return names
}

// Spec returns the spec of a named field.
func (r *Rules) Spec(name string) (FieldSpec, bool) {
	for _, rl := range r.rules {
		if rl.spec.Name == name {
			return rl.spec, true
		}
	}
	return FieldSpec{}, false
}

// KeyPattern builds the pattern Keys expands to.
func KeyPattern(key string) string {
	return `^` + regexp.QuoteMeta(key) + `(?:\s*:\s*|\s+)(.*?)\s*$`
}

// Compile validates and compiles specs.
func Compile(specs []FieldSpec) (*Rules, error) {
	seen := make(map[string]bool)
	compiled := &Rules{rules: make([]rule, 0, len(specs))}

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("field spec without name")
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("field %q declared twice", spec.Name)
		}
		seen[spec.Name] = true

		switch spec.Type {
		case TypeInt, TypeFloat, TypeString:
		case TypeEnum:
			if len(spec.Enum) == 0 {
				return nil, fmt.Errorf("field %q: enum type needs values", spec.Name)
			}
		case "":
			spec.Type = TypeString
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", spec.Name, spec.Type)
		}

		sources := make([]string, 0, len(spec.Keys)+len(spec.Patterns))
		for _, key := range spec.Keys {
			sources = append(sources, KeyPattern(key))
		}
		sources = append(sources, spec.Patterns...)
		if len(sources) == 0 {
			return nil, fmt.Errorf("field %q: no keys or patterns", spec.Name)
		}

		rl := rule{spec: spec}
		for _, src := range sources {
			re, err := regexp.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", spec.Name, err)
			}
			if re.NumSubexp() != 1 {
				return nil, fmt.Errorf("field %q: pattern %q must have exactly one capture group", spec.Name, src)
			}
			rl.patterns = append(rl.patterns, re)
		}

		if spec.Default != "" {
			v, err := coerce(spec, spec.Default)
			if err != nil {
				return nil, fmt.Errorf("field %q: default: %w", spec.Name, err)
			}
			rl.fallback = &v
		}

		compiled.rules = append(compiled.rules, rl)
	}

	return compiled, nil
}

// MustCompile is like Compile but panics on error. Used for built-in rules.
func MustCompile(specs []FieldSpec) *Rules {
	r, err := Compile(specs)
	if err != nil {
		panic(err)
	}
	return r
}

// Require returns a copy of specs with the named fields marked required.
func Require(specs []FieldSpec, names ...string) []FieldSpec {
	out := make([]FieldSpec, len(specs))
	copy(out, specs)
	for i := range out {
		for _, name := range names {
			if out[i].Name == name {
				out[i].Required = true
			}
		}
	}
	return out
}

// Parse extracts the fields of rules from raw. The first line matching any
// of a field's patterns wins.
func Parse(raw string, rules *Rules) (*Report, error) {
	lines := Lines(raw)
	rep := &Report{
		Pairs:  make([]Pair, 0, len(lines)),
		values: make(map[string]Value),
	}
	for _, line := range lines {
		rep.Pairs = append(rep.Pairs, splitPair(line))
	}

	for _, rl := range rules.rules {
		matched, line, ok := rl.find(lines)
		if ok {
			v, err := coerce(rl.spec, matched)
			if err == nil {
				rep.values[rl.spec.Name] = v
				continue
			}
			if rl.spec.Required {
				return nil, &ParseError{Field: rl.spec.Name, Line: line, Reason: err.Error()}
			}
		} else if rl.spec.Required {
			return nil, &ParseError{Field: rl.spec.Name, Reason: "field not found"}
		}
		if rl.fallback != nil {
			rep.values[rl.spec.Name] = *rl.fallback
		}
	}

	return rep, nil
}

func (rl rule) find(lines []string) (value, line string, ok bool) {
	for _, line := range lines {
		for _, re := range rl.patterns {
			if m := re.FindStringSubmatch(line); m != nil {
				return m[1], line, true
			}
		}
	}
	return "", "", false
}

// Lines splits a response into non-empty lines without line terminators.
func Lines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitPair tokenizes a line on the first tab, ": " or run of spaces.
// Lines without a separator become a key with an empty value.
func splitPair(line string) Pair {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return Pair{Key: strings.TrimSpace(line[:i]), Value: strings.TrimSpace(line[i+1:])}
	}
	if i := strings.Index(line, ": "); i >= 0 {
		return Pair{Key: strings.TrimSpace(line[:i]), Value: strings.TrimSpace(line[i+2:])}
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasSuffix(trimmed, ":") {
		return Pair{Key: strings.TrimSuffix(trimmed, ":")}
	}
	if i := strings.IndexAny(trimmed, " "); i >= 0 {
		return Pair{Key: trimmed[:i], Value: strings.TrimSpace(trimmed[i+1:])}
	}
	return Pair{Key: trimmed}
}

func coerce(spec FieldSpec, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	v := Value{Raw: raw, Type: spec.Type}
	switch spec.Type {
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not an integer", raw)
		}
		v.Int = n
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a number", raw)
		}
		v.Float = f
	case TypeEnum:
		found := false
		for _, allowed := range spec.Enum {
			if raw == allowed {
				found = true
				break
			}
		}
		if !found {
			return Value{}, fmt.Errorf("%q is not one of %s", raw, strings.Join(spec.Enum, ", "))
		}
	}
	return v, nil
}

// ParseError reports a required field that is missing or malformed.
type ParseError struct {
	Field  string
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("parse field %s: %s (line %q)", e.Field, e.Reason, e.Line)
	}
	return fmt.Sprintf("parse field %s: %s", e.Field, e.Reason)
}
