package compiler

import (
	"fmt"
	"math/bits"
	"regexp"
	"slices"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// Condition operators in the structured form.
const (
	opEqual = "eq"
	opIn    = "in"
)

// funcBitAnd is the call masked expressions are rewritten to.
const funcBitAnd = "bitand"

// maskedField matches "FIELD & MASK" so it can be rewritten into a call the
// expression parser understands. It never matches "&&".
var maskedField = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*&\s*(0[xX][0-9A-Fa-f]+|0[bB][01]+|[0-9]+)`)

// term is one compiled predicate over a single field.
type term struct {
	field   capability.IOKey
	mask    int
	hasMask bool
	values  []int
}

// CompileCondition reduces a mode condition to a field and a finite value
// set. The source is either an expression string or a structured mapping:
//
//	"P5 == 1"
//	"P5 in [3, 6]"
//	"P5 & 0xFF == 1"
//	"bitand(P5, 255) in [1, 2]"
//	"P5 == 3 or P5 == 6"
//	{field: P5, op: in, values: [3, 6], mask: 0xFF}
//	{P5: [3, 6]}
//
// Warnings describe values dropped under the premasked policy.
func CompileCondition(src any, opts ConditionOptions) (capability.Condition, []string, error) {
	var (
		t   term
		err error
	)

	switch v := src.(type) {
	case string:
		t, err = compileExpression(v)
	case map[string]any:
		t, err = compileStructured(v)
	default:
		err = fmt.Errorf("%w: unsupported condition value %T", ErrInvalidCondition, src)
	}
	if err != nil {
		return capability.Condition{}, nil, err
	}

	if err := capability.ValidateIOKey(t.field); err != nil {
		return capability.Condition{}, nil, fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}

	values, warnings, err := applyMask(t, opts)
	if err != nil {
		return capability.Condition{}, nil, err
	}
	if len(values) == 0 {
		return capability.Condition{}, warnings, fmt.Errorf("%w: %s matches no value", ErrInvalidCondition, t.field)
	}

	return capability.NewCondition(t.field, values...), warnings, nil
}

// compileExpression parses an expression once and walks its tree.
func compileExpression(text string) (term, error) {
	rewritten := maskedField.ReplaceAllString(text, funcBitAnd+"($1, $2)")

	tree, err := parser.Parse(rewritten)
	if err != nil {
		return term{}, fmt.Errorf("%w: %q: %w", ErrInvalidCondition, text, err)
	}
	return compileNode(tree.Node)
}

func compileNode(node ast.Node) (term, error) {
	if un, ok := node.(*ast.UnaryNode); ok {
		return term{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, un.Operator)
	}
	bin, ok := node.(*ast.BinaryNode)
	if !ok {
		return term{}, fmt.Errorf("%w: expected a comparison, got %s", ErrInvalidCondition, node)
	}

	switch bin.Operator {
	case "or", "||":
		left, err := compileNode(bin.Left)
		if err != nil {
			return term{}, err
		}
		right, err := compileNode(bin.Right)
		if err != nil {
			return term{}, err
		}
		if left.field != right.field {
			return term{}, fmt.Errorf("%w: %s and %s", ErrMultipleFields, left.field, right.field)
		}
		if left.hasMask != right.hasMask || left.mask != right.mask {
			return term{}, fmt.Errorf("%w: alternatives over %s use different masks", ErrInvalidCondition, left.field)
		}
		left.values = append(left.values, right.values...)
		return left, nil

	case "==":
		fieldSide, valueSide := bin.Left, bin.Right
		if _, isField := fieldExpr(valueSide); isField {
			if _, bothFields := fieldExpr(fieldSide); bothFields {
				return term{}, fmt.Errorf("%w: %s", ErrMultipleFields, node)
			}
			fieldSide, valueSide = valueSide, fieldSide
		}
		t, err := fieldTerm(fieldSide)
		if err != nil {
			return term{}, err
		}
		v, err := intLiteral(valueSide)
		if err != nil {
			return term{}, err
		}
		t.values = []int{v}
		return t, nil

	case "in":
		t, err := fieldTerm(bin.Left)
		if err != nil {
			return term{}, err
		}
		arr, ok := bin.Right.(*ast.ArrayNode)
		if !ok {
			return term{}, fmt.Errorf("%w: right side of in must be a list", ErrInvalidCondition)
		}
		for _, item := range arr.Nodes {
			if _, isField := fieldExpr(item); isField {
				return term{}, fmt.Errorf("%w: %s", ErrMultipleFields, node)
			}
			v, err := intLiteral(item)
			if err != nil {
				return term{}, err
			}
			t.values = append(t.values, v)
		}
		return t, nil

	default:
		return term{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, bin.Operator)
	}
}

// fieldTerm reads a field reference, optionally masked.
func fieldTerm(node ast.Node) (term, error) {
	t, ok := fieldExpr(node)
	if !ok {
		return term{}, fmt.Errorf("%w: expected a field, got %s", ErrInvalidCondition, node)
	}
	return t, nil
}

// fieldExpr recognises IDENT and bitand(IDENT, INT) in either argument order.
func fieldExpr(node ast.Node) (term, bool) {
	var args []ast.Node

	switch n := node.(type) {
	case *ast.IdentifierNode:
		return term{field: capability.IOKey(n.Value)}, true
	case *ast.BuiltinNode:
		if n.Name != funcBitAnd {
			return term{}, false
		}
		args = n.Arguments
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || callee.Value != funcBitAnd {
			return term{}, false
		}
		args = n.Arguments
	default:
		return term{}, false
	}

	if len(args) != 2 {
		return term{}, false
	}
	for i := range args {
		ident, ok := args[i].(*ast.IdentifierNode)
		if !ok {
			continue
		}
		mask, err := intLiteral(args[1-i])
		if err != nil {
			return term{}, false
		}
		return term{field: capability.IOKey(ident.Value), mask: mask, hasMask: true}, true
	}
	return term{}, false
}

func intLiteral(node ast.Node) (int, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return n.Value, nil
	case *ast.UnaryNode:
		if n.Operator == "-" {
			v, err := intLiteral(n.Node)
			return -v, err
		}
	}
	return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidCondition, node)
}

// structuredCondition is the mapping form of a condition.
type structuredCondition struct {
	Field  string `mapstructure:"field"`
	Op     string `mapstructure:"op"`
	Value  *int   `mapstructure:"value"`
	Values []int  `mapstructure:"values"`
	Mask   *int   `mapstructure:"mask"`
}

func compileStructured(m map[string]any) (term, error) {
	// Shorthand {FIELD: value} or {FIELD: [values]}.
	if _, hasField := m["field"]; !hasField && len(m) == 1 {
		for field, raw := range m {
			var values []int
			if err := decode(raw, &values, true); err != nil {
				var single int
				if err := decode(raw, &single, true); err != nil {
					return term{}, fmt.Errorf("%w: %s: values must be integers", ErrInvalidCondition, field)
				}
				values = []int{single}
			}
			return term{field: capability.IOKey(field), values: values}, nil
		}
	}

	var sc structuredCondition
	if err := decodeStrict(m, &sc); err != nil {
		return term{}, fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}
	if sc.Field == "" {
		return term{}, fmt.Errorf("%w: field is required", ErrInvalidCondition)
	}

	t := term{field: capability.IOKey(sc.Field)}
	if sc.Mask != nil {
		t.mask, t.hasMask = *sc.Mask, true
	}

	op := sc.Op
	if op == "" {
		op = opEqual
		if sc.Values != nil {
			op = opIn
		}
	}

	switch op {
	case opEqual, "==":
		if sc.Value == nil {
			return term{}, fmt.Errorf("%w: op %s needs value", ErrInvalidCondition, op)
		}
		t.values = []int{*sc.Value}
	case opIn:
		if sc.Values == nil {
			return term{}, fmt.Errorf("%w: op %s needs values", ErrInvalidCondition, op)
		}
		t.values = slices.Clone(sc.Values)
	default:
		return term{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	return t, nil
}

// applyMask reduces a masked term to raw values according to the policy.
func applyMask(t term, opts ConditionOptions) ([]int, []string, error) {
	if !t.hasMask {
		return t.values, nil, nil
	}
	if t.mask < 0 {
		return nil, nil, fmt.Errorf("%w: negative mask %d", ErrInvalidCondition, t.mask)
	}

	switch opts.MaskPolicy {
	case MaskExpand:
		values, err := expandMask(t, opts.MaskWidthBits)
		return values, nil, err

	case MaskPremasked, "":
		var kept []int
		warnings := []string{fmt.Sprintf("mask %#x on %s assumed applied by transport", t.mask, t.field)}
		for _, v := range t.values {
			if v >= 0 && v&t.mask == v {
				kept = append(kept, v)
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"condition on %s: value %d can never equal %s & %#x, dropped", t.field, v, t.field, t.mask))
		}
		return kept, warnings, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown mask policy %q", ErrInvalidCondition, opts.MaskPolicy)
	}
}

// expandMask enumerates every raw value of width bits whose masked value
// is in t.values.
func expandMask(t term, width int) ([]int, error) {
	if width <= 0 {
		width = DefaultMaskWidthBits
	}
	if width > maxMaskWidthBits {
		return nil, fmt.Errorf("%w: mask width %d exceeds %d bits", ErrMaskExpansion, width, maxMaskWidthBits)
	}
	limit := 1 << width
	if t.mask >= limit {
		return nil, fmt.Errorf("%w: mask %#x wider than %d bits", ErrMaskExpansion, t.mask, width)
	}

	allowed := make(map[int]struct{}, len(t.values))
	for _, v := range t.values {
		if v >= 0 && v&t.mask == v {
			allowed[v] = struct{}{}
		}
	}

	free := width - bits.OnesCount(uint(t.mask))
	if total := len(allowed) << free; total > maxExpandedValues {
		return nil, fmt.Errorf("%w: %s would match %d raw values (max %d)", ErrMaskExpansion, t.field, total, maxExpandedValues)
	}

	var out []int
	for raw := 0; raw < limit; raw++ {
		if _, ok := allowed[raw&t.mask]; ok {
			out = append(out, raw)
		}
	}
	return out, nil
}
