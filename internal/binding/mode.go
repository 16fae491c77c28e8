package binding

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/labroutine/internal/ir"
)

// ModeSelection is what a script wrote to current_mode: either a model
// index or a free-form label naming a model.
type ModeSelection interface {
	fmt.Stringer
	isModeSelection()
}

// ParsedMode is a selection by model index.
type ParsedMode struct {
	Index int
}

// RawLabel is a selection by model name or path.
type RawLabel struct {
	Label string
}

func (ParsedMode) isModeSelection() {}
func (RawLabel) isModeSelection()   {}

func (m ParsedMode) String() string { return strconv.Itoa(m.Index) }
func (l RawLabel) String() string   { return strconv.Quote(l.Label) }

// SelectionError reports a current_mode value that does not select a model.
type SelectionError struct {
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid model selection %s: %s", e.Value, e.Reason)
}

// IsSelectionError returns true if err is or wraps a SelectionError.
func IsSelectionError(err error) bool {
	var se *SelectionError
	return errors.As(err, &se)
}

// ParseMode interprets a current_mode value. Whole numbers and strings
// holding an integer become ParsedMode, any other string a RawLabel.
func ParseMode(v any) (ModeSelection, error) {
	switch val := v.(type) {
	case int64:
		if val < math.MinInt || val > math.MaxInt {
			return nil, &SelectionError{Value: strconv.FormatInt(val, 10), Reason: "outside the index range"}
		}
		return ParsedMode{Index: int(val)}, nil
	case int:
		return ParsedMode{Index: val}, nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			return nil, &SelectionError{Value: strconv.FormatFloat(val, 'g', -1, 64), Reason: "not a whole number"}
		}
		if val < math.MinInt || val >= -math.MinInt {
			return nil, &SelectionError{Value: strconv.FormatFloat(val, 'g', -1, 64), Reason: "outside the index range"}
		}
		return ParsedMode{Index: int(val)}, nil
	case string:
		trimmed := strings.TrimSpace(val)
		if i, err := strconv.Atoi(trimmed); err == nil {
			return ParsedMode{Index: i}, nil
		}
		if trimmed == "" {
			return nil, &SelectionError{Value: strconv.Quote(val), Reason: "empty label"}
		}
		return RawLabel{Label: trimmed}, nil
	case nil:
		return nil, &SelectionError{Value: "null", Reason: "current_mode is not set"}
	default:
		return nil, &SelectionError{Value: fmt.Sprintf("%v", v), Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

// Resolve maps a selection onto a model index of routine.
func Resolve(sel ModeSelection, routine ir.Routine) (int, error) {
	switch s := sel.(type) {
	case ParsedMode:
		if !routine.HasModel(s.Index) {
			return 0, &SelectionError{
				Value:  s.String(),
				Reason: fmt.Sprintf("index out of range [0, %d)", routine.NumModels()),
			}
		}
		return s.Index, nil
	case RawLabel:
		idx, ok := routine.ModelByLabel(s.Label)
		if !ok {
			return 0, &SelectionError{Value: s.String(), Reason: "no model with that name or path"}
		}
		return idx, nil
	default:
		return 0, &SelectionError{Value: fmt.Sprintf("%v", sel), Reason: "unknown selection"}
	}
}
