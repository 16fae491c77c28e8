package script

import (
	"fmt"
	"math"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// toCty converts a binding value to a cty value.
func toCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case string:
		return cty.StringVal(val), nil
	case []string:
		if len(val) == 0 {
			return cty.ListValEmpty(cty.String), nil
		}
		elems := make([]cty.Value, len(val))
		for i, s := range val {
			elems[i] = cty.StringVal(s)
		}
		return cty.ListVal(elems), nil
	case []float64:
		if len(val) == 0 {
			return cty.ListValEmpty(cty.Number), nil
		}
		elems := make([]cty.Value, len(val))
		for i, f := range val {
			elems[i] = cty.NumberFloatVal(f)
		}
		return cty.ListVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported binding type %T", v)
	}
}

// fromCty converts a script value back to a binding value. Numbers come
// back as int64 when whole, float64 otherwise. Lists of numbers become
// []float64 and lists of strings []string. An empty list is []float64
// unless its element type is string.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("value is null")
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.Number:
		return numberValue(v)
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.String:
		return v.AsString(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		return listValue(v)
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

// numberValue rejects infinities, including finite values beyond the
// float64 range.
func numberValue(v cty.Value) (any, error) {
	bf := v.AsBigFloat()
	if bf.IsInf() {
		return nil, fmt.Errorf("number is not finite")
	}
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == big.Exact {
			return i, nil
		}
	}
	f, _ := bf.Float64()
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("number %s is out of range", bf.Text('g', 10))
	}
	return f, nil
}

func listValue(v cty.Value) (any, error) {
	elems := v.AsValueSlice()
	if len(elems) == 0 {
		ty := v.Type()
		if (ty.IsListType() || ty.IsSetType()) && ty.ElementType() == cty.String {
			return []string{}, nil
		}
		return []float64{}, nil
	}

	switch elems[0].Type() {
	case cty.Number:
		out := make([]float64, len(elems))
		for i, e := range elems {
			if e.IsNull() || e.Type() != cty.Number {
				return nil, fmt.Errorf("list element %d is not a number", i)
			}
			n, err := numberValue(e)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			switch n := n.(type) {
			case int64:
				out[i] = float64(n)
			case float64:
				out[i] = n
			}
		}
		return out, nil
	case cty.String:
		out := make([]string, len(elems))
		for i, e := range elems {
			if e.IsNull() || e.Type() != cty.String {
				return nil, fmt.Errorf("list element %d is not a string", i)
			}
			out[i] = e.AsString()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported list element type %s", elems[0].Type().FriendlyName())
	}
}
