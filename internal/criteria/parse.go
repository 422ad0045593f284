package criteria

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/projectledger/internal/domain"
)

// reserved query parameters are never treated as filters.
var reserved = map[string]bool{
	"page":      true,
	"size":      true,
	"sort":      true,
	"query":     true,
	"distinct":  true,
	"eagerload": true,
}

// Condition is one parsed field/operator/value triple.
type Condition struct {
	Field  Field
	Op     Operator
	Values []any
}

// Spec is a validated filter specification. Conditions combine with AND.
type Spec struct {
	Conditions []Condition
}

// Empty reports whether the spec filters nothing.
func (s Spec) Empty() bool {
	return len(s.Conditions) == 0
}

// Parse validates query parameters of the form <field>.<operator>=<value>
// against schema.
func Parse(schema Schema, values url.Values) (Spec, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		if reserved[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var spec Spec
	for _, key := range keys {
		name, rawOp, ok := strings.Cut(key, ".")
		if !ok {
			return Spec{}, filterErr(key, "expected <field>.<operator>")
		}
		field, ok := schema.Field(name)
		if !ok {
			return Spec{}, filterErr(key, "unknown field %q for %s", name, schema.Entity())
		}
		op := Operator(rawOp)
		if !op.known() {
			return Spec{}, filterErr(key, "unknown operator %q", rawOp)
		}
		if !field.Allows(op) {
			return Spec{}, filterErr(key, "operator %s is not applicable to %s field %q", op, field.Type, name)
		}
		raw := values[key]
		if len(raw) == 0 {
			continue
		}
		if len(raw) > 1 {
			return Spec{}, filterErr(key, "operator %s given more than once", op)
		}

		parsed, err := parseValues(field, op, raw[0])
		if err != nil {
			return Spec{}, filterErr(key, "%v", err)
		}
		spec.Conditions = append(spec.Conditions, Condition{Field: field, Op: op, Values: parsed})
	}

	if err := checkExclusive(spec); err != nil {
		return Spec{}, err
	}

	sort.SliceStable(spec.Conditions, func(i, j int) bool {
		a, b := spec.Conditions[i], spec.Conditions[j]
		if a.Field.Name != b.Field.Name {
			return a.Field.Name < b.Field.Name
		}
		return operatorOrder[a.Op] < operatorOrder[b.Op]
	})
	return spec, nil
}

// checkExclusive rejects specified=false combined with any other operator on
// the same field.
func checkExclusive(spec Spec) error {
	absent := make(map[string]bool)
	count := make(map[string]int)
	for _, c := range spec.Conditions {
		count[c.Field.Name]++
		if c.Op == OpSpecified && !c.Values[0].(bool) {
			absent[c.Field.Name] = true
		}
	}
	for name := range absent {
		if count[name] > 1 {
			return filterErr(name+"."+string(OpSpecified), "specified=false cannot be combined with other operators on %q", name)
		}
	}
	return nil
}

func parseValues(field Field, op Operator, raw string) ([]any, error) {
	switch op {
	case OpSpecified:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return []any{v}, nil
	case OpIn, OpNotIn:
		parts := strings.Split(raw, ",")
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := parseValue(field, part)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%s requires at least one value", op)
		}
		return out, nil
	case OpContains, OpDoesNotContain:
		return []any{raw}, nil
	}
	v, err := parseValue(field, raw)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func parseValue(field Field, raw string) (any, error) {
	switch field.Type {
	case TypeString:
		return raw, nil
	case TypeInteger, TypeForeignIdentity:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return v, nil
	case TypeDecimal:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a decimal", raw)
		}
		return v, nil
	case TypeBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return v, nil
	case TypeEnum:
		for _, allowed := range field.Enum {
			if raw == allowed {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(field.Enum, ", "))
	case TypeTimestamp:
		v, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not an RFC 3339 timestamp", raw)
		}
		return v.UTC(), nil
	}
	return nil, fmt.Errorf("unsupported field type %s", field.Type)
}

// ParseSort validates sort parameters of the form field[,asc|desc].
func ParseSort(schema Schema, raw []string) ([]domain.EntitySort, error) {
	var sorts []domain.EntitySort
	for _, param := range raw {
		if strings.TrimSpace(param) == "" {
			continue
		}
		name, rawDir, _ := strings.Cut(param, ",")
		name = strings.TrimSpace(name)
		if _, ok := schema.Field(name); !ok {
			return nil, filterErr("sort", "unknown sort field %q", name)
		}
		dir := domain.SortDirectionAsc
		switch strings.ToLower(strings.TrimSpace(rawDir)) {
		case "", "asc":
		case "desc":
			dir = domain.SortDirectionDesc
		default:
			return nil, filterErr("sort", "unknown sort direction %q", rawDir)
		}
		sorts = append(sorts, domain.EntitySort{Field: name, Direction: dir})
	}
	return sorts, nil
}
