package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReportDefinition is a stored, parameterized SELECT served through the grid API.
// Definitions are authored elsewhere; the engine only reads them.
type ReportDefinition struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	ShortCode   string       `json:"short_code,omitempty" yaml:"short_code"`
	Description string       `json:"description,omitempty" yaml:"description"`
	BaseSQL     string       `json:"base_sql" yaml:"base_sql"`
	Parameters  ParameterMap `json:"parameter_map,omitempty" yaml:"parameter_map"`
	CreatedAt   time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"-"`
}

// FileBaseName returns the name used for export downloads: the short code when set,
// otherwise the id. Characters unsafe in a Content-Disposition filename are replaced.
func (d *ReportDefinition) FileBaseName() string {
	name := d.ShortCode
	if strings.TrimSpace(name) == "" {
		name = d.ID
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return b.String()
}

// Parameter is one entry of a report's parameter map: a bind name and its resolution
// spec. Spec is either a literal value or a reference tag string such as "@tenant".
type Parameter struct {
	Name string
	Spec any
}

// ParameterMap is an ordered bind-name → resolution spec mapping.
// It encodes as a JSON object / YAML mapping and keeps declaration order when decoded.
type ParameterMap []Parameter

// Lookup returns the spec declared for name.
func (m ParameterMap) Lookup(name string) (any, bool) {
	for _, p := range m {
		if p.Name == name {
			return p.Spec, true
		}
	}
	return nil, false
}

func (m ParameterMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Spec)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *ParameterMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("parameter map must be a JSON object")
	}

	var out ParameterMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("parameter map key must be a string")
		}
		var spec any
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("parameter %q: %w", key, err)
		}
		out = append(out, Parameter{Name: key, Spec: normalizeJSONNumber(spec)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

func (m ParameterMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range m {
		var val yaml.Node
		if err := val.Encode(p.Spec); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name},
			&val,
		)
	}
	return node, nil
}

func (m *ParameterMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*m = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parameter_map must be a mapping", value.Line)
	}

	out := make(ParameterMap, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var spec any
		if err := valNode.Decode(&spec); err != nil {
			return fmt.Errorf("parameter %q: %w", keyNode.Value, err)
		}
		out = append(out, Parameter{Name: keyNode.Value, Spec: spec})
	}
	*m = out
	return nil
}

// normalizeJSONNumber turns whole float64 values into int64 so literal integers bind
// as integers rather than doubles.
func normalizeJSONNumber(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
