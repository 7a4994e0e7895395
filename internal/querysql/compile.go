package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/flowtree/internal/queryir"
)

// Table is the messages table the compiler targets.
const Table = "messages"

// Columns is the column list every SELECT returns, in scan order.
const Columns = "id, flow_id, identifier, content"

// SQLCompiler compiles predicates to parameterized SQL for SQLite.
//
// CRITICAL: All values are parameterized, never interpolated.
// CRITICAL: SELECTs carry ORDER BY id so ties are deterministic; path
// order is applied by the caller, since identifier text does not sort
// numerically.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// CompileSelect returns a SELECT over Table filtered by p.
func (c *SQLCompiler) CompileSelect(p queryir.Predicate) (string, []any, error) {
	where, params, err := c.CompileWhere(p)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id COLLATE BINARY ASC",
		Columns, Table, where)
	return sql, params, nil
}

// CompileDelete returns a DELETE over Table filtered by p.
func (c *SQLCompiler) CompileDelete(p queryir.Predicate) (string, []any, error) {
	where, params, err := c.CompileWhere(p)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", Table, where), params, nil
}

// CompileWhere compiles p to a WHERE clause fragment and its parameters.
// A nil predicate compiles to an always-true clause.
func (c *SQLCompiler) CompileWhere(p queryir.Predicate) (string, []any, error) {
	if res := queryir.Validate(p); !res.OK() {
		return "", nil, res.Err()
	}
	return c.compilePredicate(p)
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.FlowEquals:
		return "flow_id = ?", []any{pred.Flow.String()}, nil
	case *queryir.FlowEquals:
		return c.compilePredicate(*pred)
	case queryir.IdentifierEquals:
		return "identifier = ?", []any{pred.Path.String()}, nil
	case *queryir.IdentifierEquals:
		return c.compilePredicate(*pred)
	case queryir.IDEquals:
		return "id = ?", []any{pred.ID}, nil
	case *queryir.IDEquals:
		return c.compilePredicate(*pred)
	case queryir.Under:
		return c.compileUnder(pred)
	case *queryir.Under:
		return c.compileUnder(*pred)
	case queryir.DepthEquals:
		return "depth = ?", []any{pred.Depth}, nil
	case *queryir.DepthEquals:
		return c.compilePredicate(*pred)
	case queryir.SegmentCompare:
		return c.compileSegmentCompare(pred)
	case *queryir.SegmentCompare:
		return c.compileSegmentCompare(*pred)
	case queryir.Matches:
		return "identifier REGEXP ?", []any{pred.Pattern}, nil
	case *queryir.Matches:
		return c.compilePredicate(*pred)
	case queryir.Not:
		sql, params, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case *queryir.Not:
		return c.compilePredicate(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileUnder matches on the dotted text form. Identifiers contain only
// digits and dots, so the LIKE pattern needs no escaping.
func (c *SQLCompiler) compileUnder(u queryir.Under) (string, []any, error) {
	if len(u.Prefix) == 0 {
		if u.IncludeSelf {
			return "1 = 1", nil, nil
		}
		return "depth >= 1", nil, nil
	}
	prefix := u.Prefix.String()
	if u.IncludeSelf {
		return "(identifier = ? OR identifier LIKE ?)", []any{prefix, prefix + ".%"}, nil
	}
	return "identifier LIKE ?", []any{prefix + ".%"}, nil
}

// compileSegmentCompare guards on depth first so that shallow rows
// evaluate to false rather than NULL, which keeps NOT well-behaved.
func (c *SQLCompiler) compileSegmentCompare(s queryir.SegmentCompare) (string, []any, error) {
	sql := fmt.Sprintf("(depth > ? AND CAST(json_extract(segments, ?) AS INTEGER) %s ?)", s.Op)
	return sql, []any{s.Index, fmt.Sprintf("$[%d]", s.Index), s.Value}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}
