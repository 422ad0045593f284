package criteria

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rpattn/projectledger/internal/domain"
)

// Predicate is a compiled filter: AND-combined SQL clauses with "?"
// placeholders and their bound arguments, in order.
type Predicate struct {
	clauses []string
	args    []any
}

// Where renders the predicate as a WHERE clause, or "" when it matches everything.
func (p Predicate) Where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(p.clauses, " AND ")
}

// Args returns a copy of the bound arguments.
func (p Predicate) Args() []any {
	return append([]any(nil), p.args...)
}

func (p Predicate) Empty() bool {
	return len(p.clauses) == 0
}

// And combines two predicates.
func (p Predicate) And(other Predicate) Predicate {
	return Predicate{
		clauses: append(append([]string(nil), p.clauses...), other.clauses...),
		args:    append(p.Args(), other.args...),
	}
}

type sqlBuilder struct {
	alias   string
	clauses []string
	args    []any
	subq    int
}

func (b *sqlBuilder) addArg(value any) string {
	b.args = append(b.args, value)
	return "?"
}

func (b *sqlBuilder) placeholders(values []any) string {
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = b.addArg(v)
	}
	return strings.Join(marks, ", ")
}

func (b *sqlBuilder) column(f Field) string {
	if b.alias == "" {
		return f.Column
	}
	return b.alias + "." + f.Column
}

// Compile parses values against schema and compiles the result for a table
// aliased as alias.
func Compile(schema Schema, alias string, values url.Values) (Predicate, error) {
	spec, err := Parse(schema, values)
	if err != nil {
		return Predicate{}, err
	}
	return spec.Predicate(alias), nil
}

// Predicate compiles a parsed spec for a table aliased as alias.
func (s Spec) Predicate(alias string) Predicate {
	b := &sqlBuilder{alias: alias}
	for _, c := range s.Conditions {
		if c.Field.Type == TypeForeignIdentity {
			b.clauses = append(b.clauses, b.foreign(c))
			continue
		}
		b.clauses = append(b.clauses, b.compare(b.column(c.Field), c))
	}
	return Predicate{clauses: b.clauses, args: b.args}
}

func (b *sqlBuilder) compare(col string, c Condition) string {
	switch c.Op {
	case OpEquals:
		return fmt.Sprintf("%s = %s", col, b.addArg(c.Values[0]))
	case OpNotEquals:
		return fmt.Sprintf("%s <> %s", col, b.addArg(c.Values[0]))
	case OpIn:
		return fmt.Sprintf("%s IN (%s)", col, b.placeholders(c.Values))
	case OpNotIn:
		return fmt.Sprintf("%s NOT IN (%s)", col, b.placeholders(c.Values))
	case OpSpecified:
		if c.Values[0].(bool) {
			return col + " IS NOT NULL"
		}
		return col + " IS NULL"
	case OpGreaterThan:
		return fmt.Sprintf("%s > %s", col, b.addArg(c.Values[0]))
	case OpGreaterThanOrEqual:
		return fmt.Sprintf("%s >= %s", col, b.addArg(c.Values[0]))
	case OpLessThan:
		return fmt.Sprintf("%s < %s", col, b.addArg(c.Values[0]))
	case OpLessThanOrEqual:
		return fmt.Sprintf("%s <= %s", col, b.addArg(c.Values[0]))
	case OpContains:
		return fmt.Sprintf(`UPPER(%s) LIKE UPPER(%s) ESCAPE '\'`, col, b.addArg(likePattern(c.Values[0].(string))))
	case OpDoesNotContain:
		return fmt.Sprintf(`UPPER(%s) NOT LIKE UPPER(%s) ESCAPE '\'`, col, b.addArg(likePattern(c.Values[0].(string))))
	}
	// Parse only produces known operators.
	panic(fmt.Sprintf("criteria: unhandled operator %q", c.Op))
}

// foreign matches the related row's identity through a correlated subquery,
// so the related entity is never loaded.
func (b *sqlBuilder) foreign(c Condition) string {
	b.subq++
	rel := fmt.Sprintf("%s_r%d", c.Field.Ref.Table, b.subq)
	join := fmt.Sprintf("%s.%s = %s", rel, c.Field.Ref.Column, b.column(c.Field))
	exists := "EXISTS (SELECT 1 FROM %s %s WHERE %s%s)"

	if c.Op == OpSpecified {
		expr := fmt.Sprintf(exists, c.Field.Ref.Table, rel, join, "")
		if c.Values[0].(bool) {
			return expr
		}
		return "NOT " + expr
	}
	cond := b.compare(rel+"."+c.Field.Ref.matched(), c)
	return fmt.Sprintf(exists, c.Field.Ref.Table, rel, join, " AND "+cond)
}

func likePattern(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(value) + "%"
}

// OrderClause renders sorts as an ORDER BY clause. With no sorts the order is
// identity descending; otherwise identity is appended as a tiebreaker so page
// windows are stable.
func OrderClause(schema Schema, alias string, sorts []domain.EntitySort) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	orderings := make([]string, 0, len(sorts)+1)
	hasID := false
	for _, s := range sorts {
		f, ok := schema.Field(s.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if s.Direction == domain.SortDirectionDesc {
			dir = "DESC"
		}
		if f.Column == "id" {
			hasID = true
		}
		orderings = append(orderings, prefix+f.Column+" "+dir)
	}
	if !hasID {
		orderings = append(orderings, prefix+"id DESC")
	}
	return "ORDER BY " + strings.Join(orderings, ", ")
}
