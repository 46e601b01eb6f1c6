package gonewton

import (
	"encoding/json"
	"fmt"
)

// ============================================================
// JSON Serialization
// ============================================================

func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(e.toJSON())
	return string(b), err
}

// ToMap returns the JSON object form of e.
func ToMap(e Expr) map[string]interface{} { return e.toJSON() }

// FromJSON rebuilds an expression from its JSON object form. Names are checked
// against the same allow-list the parser uses.
func FromJSON(data map[string]interface{}) (Expr, error) {
	if data == nil {
		return nil, fmt.Errorf("expression must be an object")
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, fmt.Errorf("missing 'type' field")
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("field 'type' must be a non-empty string")
	}

	subExpr := func(field string) (Expr, error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%s: missing %q", typ, field)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an object", typ, field)
		}
		e, err := FromJSON(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", typ, field, err)
		}
		return e, nil
	}

	subString := func(field string) (string, error) {
		v, ok := data[field]
		if !ok {
			return "", fmt.Errorf("%s: missing %q", typ, field)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", fmt.Errorf("%s: %q must be a non-empty string", typ, field)
		}
		return s, nil
	}

	switch typ {
	case "num":
		switch v := data["value"].(type) {
		case float64:
			return N(v), nil
		case json.Number:
			f, err := v.Float64()
			if err == nil {
				return N(f), nil
			}
		}
		return nil, fmt.Errorf("num: 'value' must be a number")

	case "var":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		if name != VarName {
			return nil, disallowed(-1, name)
		}
		return X(), nil

	case "const":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		c, ok := ConstOf(name)
		if !ok {
			return nil, disallowed(-1, name)
		}
		return c, nil

	case "neg":
		arg, err := subExpr("arg")
		if err != nil {
			return nil, err
		}
		return &Neg{arg: arg}, nil

	case "binary":
		op, err := subString("op")
		if err != nil {
			return nil, err
		}
		if len(op) != 1 || (op[0] != '+' && op[0] != '-' && op[0] != '*' && op[0] != '/' && op[0] != '%') {
			return nil, fmt.Errorf("binary: unknown operator %q", op)
		}
		left, err := subExpr("left")
		if err != nil {
			return nil, err
		}
		right, err := subExpr("right")
		if err != nil {
			return nil, err
		}
		return &Binary{op: op[0], left: left, right: right}, nil

	case "pow":
		base, err := subExpr("base")
		if err != nil {
			return nil, err
		}
		exp, err := subExpr("exp")
		if err != nil {
			return nil, err
		}
		return &Pow{base: base, exp: exp}, nil

	case "call":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		if !IsFunction(name) {
			return nil, disallowed(-1, name)
		}
		arg, err := subExpr("arg")
		if err != nil {
			return nil, err
		}
		return CallOf(name, arg), nil
	}
	return nil, fmt.Errorf("unknown expression type: %s", typ)
}
