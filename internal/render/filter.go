// A row predicate for output filtering. Compiled once per query, evaluated
// against every fetched row before the row reaches the row writer.

package render

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

const (
	recordExprNamespace = "record"
	rowNumberExprName   = "row_number"
)

type RowFilter struct {
	prog       *vm.Program
	expression string
}

// NewRowFilter compiles the filter expression. Columns are addressed as
// record.<name>, the zero based row counter as row_number. An empty
// expression matches every row.
func NewRowFilter(expression string) (*RowFilter, error) {
	if expression == "" {
		return &RowFilter{}, nil
	}
	prog, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("unable to compile filter expression: %w", err)
	}
	return &RowFilter{
		prog:       prog,
		expression: expression,
	}, nil
}

func (f *RowFilter) Matches(columns []string, values []any, rowNumber int) (bool, error) {
	if f.prog == nil {
		return true, nil
	}
	record := make(map[string]any, len(columns))
	for idx, name := range columns {
		record[name] = exprValue(values[idx])
	}
	env := map[string]any{
		recordExprNamespace: record,
		rowNumberExprName:   rowNumber,
	}
	output, err := expr.Run(f.prog, env)
	if err != nil {
		return false, fmt.Errorf("unable to evaluate filter expression: %w", err)
	}
	cond, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression should return boolean, got (%T) and value %+v", output, output)
	}
	return cond, nil
}

// exprValue converts decoded column values to the types the expr runtime
// expects: nil, bool, int, uint, float64, string, array, map.
func exprValue(v any) any {
	switch vv := v.(type) {
	case float32:
		return float64(vv)
	case int64:
		return int(vv)
	case int32:
		return int(vv)
	case int16:
		return int(vv)
	case int8:
		return int(vv)
	case byte:
		return int(vv)
	case uint64:
		return uint(vv)
	case uint32:
		return uint(vv)
	case uint16:
		return uint(vv)
	case decimal.Decimal:
		f, _ := vv.Float64()
		return f
	case []byte:
		return string(vv)
	}
	return v
}
