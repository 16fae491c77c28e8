package script

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// SumFunc adds up a list of numbers. The sum of an empty list is 0.
var SumFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "list", Type: cty.List(cty.Number)},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		total := cty.Zero
		for _, v := range args[0].AsValueSlice() {
			total = total.Add(v)
		}
		return total, nil
	},
})

// AverageFunc returns the arithmetic mean of a non-empty list of numbers.
var AverageFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "list", Type: cty.List(cty.Number)},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		values := args[0].AsValueSlice()
		if len(values) == 0 {
			return cty.UnknownVal(cty.Number), function.NewArgErrorf(0, "cannot average an empty list")
		}
		total := cty.Zero
		for _, v := range values {
			total = total.Add(v)
		}
		return total.Divide(cty.NumberIntVal(int64(len(values)))), nil
	},
})

// Functions returns the function table available to scripts.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"abs":      stdlib.AbsoluteFunc,
		"avg":      AverageFunc,
		"ceil":     stdlib.CeilFunc,
		"coalesce": stdlib.CoalesceFunc,
		"concat":   stdlib.ConcatFunc,
		"contains": stdlib.ContainsFunc,
		"element":  stdlib.ElementFunc,
		"floor":    stdlib.FloorFunc,
		"format":   stdlib.FormatFunc,
		"length":   stdlib.LengthFunc,
		"lower":    stdlib.LowerFunc,
		"max":      stdlib.MaxFunc,
		"min":      stdlib.MinFunc,
		"pow":      stdlib.PowFunc,
		"range":    stdlib.RangeFunc,
		"reverse":  stdlib.ReverseListFunc,
		"signum":   stdlib.SignumFunc,
		"strlen":   stdlib.StrlenFunc,
		"substr":   stdlib.SubstrFunc,
		"sum":      SumFunc,
		"upper":    stdlib.UpperFunc,
	}
}

// FunctionNames returns the sorted names of the script functions.
func FunctionNames() []string {
	fns := Functions()
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func describeFunction(name string) string {
	fn, ok := Functions()[name]
	if !ok {
		return ""
	}
	params := fn.Params()
	args := make([]string, 0, len(params)+1)
	for _, p := range params {
		args = append(args, p.Name)
	}
	if vp := fn.VarParam(); vp != nil {
		args = append(args, vp.Name+"...")
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// FunctionSignatures returns "name(params)" for every script function.
func FunctionSignatures() []string {
	names := FunctionNames()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = describeFunction(name)
	}
	return out
}
