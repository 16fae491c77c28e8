package script

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// HCLEvaluator runs scripts written as HCL expression statements.
// It keeps no state between calls and is safe for concurrent use.
type HCLEvaluator struct {
	functions map[string]function.Function
	filename  string
}

// NewHCLEvaluator returns an evaluator with the standard function table.
func NewHCLEvaluator() *HCLEvaluator {
	return &HCLEvaluator{
		functions: Functions(),
		filename:  "script",
	}
}

// Evaluate runs src statement by statement. Each statement sees the
// variables as left by the statements before it. The returned bindings
// hold every input variable plus every variable the script assigned.
func (e *HCLEvaluator) Evaluate(ctx context.Context, src string, in Bindings) (Bindings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, err := Parse(src, e.filename)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			return nil, &RuntimeError{Message: se.Message, Line: se.Line, Column: se.Column}
		}
		return nil, &RuntimeError{Message: err.Error()}
	}

	vars := make(map[string]cty.Value, len(in))
	for name, v := range in {
		cv, err := toCty(v)
		if err != nil {
			return nil, &RuntimeError{Message: fmt.Sprintf("variable %q: %v", name, err)}
		}
		vars[name] = cv
	}

	evalCtx := &hcl.EvalContext{
		Variables: vars,
		Functions: e.functions,
	}

	for _, st := range prog.statements {
		if err := e.exec(evalCtx, st); err != nil {
			return nil, err
		}
	}

	out := make(Bindings, len(vars))
	for name, cv := range vars {
		v, err := fromCty(cv)
		if err != nil {
			return nil, &RuntimeError{Message: fmt.Sprintf("variable %q: %v", name, err)}
		}
		out[name] = v
	}
	return out, nil
}

// exec runs one statement, updating evalCtx.Variables in place.
func (e *HCLEvaluator) exec(evalCtx *hcl.EvalContext, st statement) error {
	val, diags := st.value.Value(evalCtx)
	if diags.HasErrors() {
		return runtimeErrorFromDiags(diags)
	}
	if val.IsNull() {
		return runtimeErrorAt(st.value.Range(), "value assigned to %q is null", st.target)
	}

	vars := evalCtx.Variables
	if st.index == nil && st.op == opAssign {
		vars[st.target] = val
		return nil
	}

	cur, ok := vars[st.target]
	if !ok {
		return runtimeErrorAt(st.targetRange, "undefined variable %q", st.target)
	}

	if st.index != nil {
		idx, err := e.index(evalCtx, st)
		if err != nil {
			return err
		}
		updated, err := setElement(cur, idx, val)
		if err != nil {
			return runtimeErrorAt(st.targetRange, "%s: %v", st.target, err)
		}
		vars[st.target] = updated
		return nil
	}

	updated, err := appendValue(cur, val)
	if err != nil {
		return runtimeErrorAt(st.rng, "%s: %v", st.target, err)
	}
	vars[st.target] = updated
	return nil
}

// index evaluates the index expression of st as a whole number.
func (e *HCLEvaluator) index(evalCtx *hcl.EvalContext, st statement) (int, error) {
	v, diags := st.index.Value(evalCtx)
	if diags.HasErrors() {
		return 0, runtimeErrorFromDiags(diags)
	}
	if v.IsNull() || v.Type() != cty.Number {
		return 0, runtimeErrorAt(st.index.Range(), "index of %q must be a number", st.target)
	}
	bf := v.AsBigFloat()
	i, acc := bf.Int64()
	if !bf.IsInt() || acc != big.Exact {
		return 0, runtimeErrorAt(st.index.Range(), "index of %q must be a whole number", st.target)
	}
	return int(i), nil
}

// setElement returns list with element idx replaced by val.
func setElement(list cty.Value, idx int, val cty.Value) (cty.Value, error) {
	ty := list.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return cty.NilVal, fmt.Errorf("cannot index a value of type %s", ty.FriendlyName())
	}
	elems := list.AsValueSlice()
	if idx < 0 || idx >= len(elems) {
		return cty.NilVal, fmt.Errorf("index %d out of range (length %d)", idx, len(elems))
	}
	elems[idx] = val
	return cty.TupleVal(elems), nil
}

// appendValue implements +=: lists grow by an element (or by every element
// of a list), numbers add, strings concatenate.
func appendValue(cur, val cty.Value) (cty.Value, error) {
	ty := cur.Type()
	switch {
	case ty.IsListType() || ty.IsTupleType():
		elems := cur.AsValueSlice()
		vt := val.Type()
		if vt.IsListType() || vt.IsTupleType() {
			elems = append(elems, val.AsValueSlice()...)
		} else {
			elems = append(elems, val)
		}
		if len(elems) == 0 {
			return cty.EmptyTupleVal, nil
		}
		return cty.TupleVal(elems), nil
	case ty == cty.Number && val.Type() == cty.Number:
		return cur.Add(val), nil
	case ty == cty.String && val.Type() == cty.String:
		return cty.StringVal(cur.AsString() + val.AsString()), nil
	default:
		return cty.NilVal, fmt.Errorf("cannot add %s to %s", val.Type().FriendlyName(), ty.FriendlyName())
	}
}
