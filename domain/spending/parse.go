package spending

import (
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"gsdesign/domain/core"
)

// Parse reads the compact form used on command lines and in spreadsheet
// cells: a family name optionally followed by parenthesised parameters,
// e.g. "ldof", "hsd(-4)" or "logistic(1, 2)".
func Parse(s string) (Function, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Function{}, core.InvalidParameter("spending", s, "empty spending function")
	}
	name, rest, hasParams := strings.Cut(s, "(")
	var params []float64
	if hasParams {
		inner, ok := strings.CutSuffix(strings.TrimSpace(rest), ")")
		if !ok {
			return Function{}, core.InvalidParameter("spending", s, "missing closing parenthesis")
		}
		for _, field := range strings.Split(inner, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Function{}, core.InvalidParameter("spending", s, "parameter %q is not a number", field)
			}
			params = append(params, v)
		}
	}
	return New(Family(strings.TrimSpace(name)), params...)
}

// functionFields decodes the object form without recursing into the
// custom unmarshalers.
type functionFields Function

// UnmarshalJSON accepts the object form {"family": ..., "params": [...]}
// or the compact string form read by Parse.
func (f *Function) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := Parse(s)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}
	var ff functionFields
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	*f = Function(ff)
	return nil
}

// UnmarshalYAML accepts a mapping with family and params or a scalar in
// the compact form.
func (f *Function) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := Parse(node.Value)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}
	var ff functionFields
	if err := node.Decode(&ff); err != nil {
		return err
	}
	*f = Function(ff)
	return nil
}
