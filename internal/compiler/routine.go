package compiler

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"

	"github.com/roach88/labroutine/internal/ir"
)

// Script roles, used as keys of Definition.ScriptFiles.
const (
	ScriptInitialization = "initialization"
	ScriptRepetitive     = "repetitive"
)

// maxRangeValues bounds the values an iterator range may expand to.
const maxRangeValues = 1 << 20

// Definition is a compiled routine together with where it came from.
type Definition struct {
	Routine ir.Routine

	// File is the routine file, empty for routines compiled from a value.
	File string

	// ScriptFiles maps a script role to the file its text was read from.
	// Inline scripts have no entry.
	ScriptFiles map[string]string
}

// CompileRoutine parses a CUE value into a routine definition.
// The value should be the routine struct itself, already unified with the
// routine schema. Script files are resolved relative to baseDir.
//
//	v := unified.LookupPath(cue.ParsePath("routine.calibration"))
//	def, err := CompileRoutine(v, "routines/")
func CompileRoutine(v cue.Value, baseDir string) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{ScriptFiles: make(map[string]string)}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Routine.Name = labels[len(labels)-1].Unquoted()
	}

	models, err := parseModels(v)
	if err != nil {
		return nil, err
	}
	def.Routine.Models = models

	if err := parseScripts(v, baseDir, def); err != nil {
		return nil, err
	}

	if def.Routine.ScanOnlyOnce, err = lookupBool(v, "scan_only_once"); err != nil {
		return nil, err
	}
	if def.Routine.StopAfterScan, err = lookupBool(v, "stop_after_scan"); err != nil {
		return nil, err
	}
	if def.Routine.ShuffleIterations, err = lookupBool(v, "shuffle_iterations"); err != nil {
		return nil, err
	}
	if def.Routine.ControlLeCroy, err = lookupBool(v, "control_lecroy"); err != nil {
		return nil, err
	}

	if f, ok := lookup(v, "scan_count"); ok {
		n, err := f.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Routine.ScanCount = int(n)
	}
	if f, ok := lookup(v, "seed"); ok {
		seed, err := f.Uint64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Routine.Seed = seed
	}

	return def, nil
}

// lookup returns a field resolved to its default. Missing fields and
// fields left as bare schema types are reported as absent.
func lookup(v cue.Value, field string) (cue.Value, bool) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return f, false
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	return f, f.IsConcrete()
}

func lookupBool(v cue.Value, field string) (bool, error) {
	f, ok := lookup(v, field)
	if !ok {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func lookupString(v cue.Value, field string) (string, bool, error) {
	f, ok := lookup(v, field)
	if !ok {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// parseModels reads the model list. List order assigns indices, the first
// model is the primary model.
func parseModels(v cue.Value) ([]ir.Model, error) {
	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return nil, &CompileError{
			Field:   "models",
			Message: "at least one model is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := modelsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []ir.Model
	for iter.Next() {
		mv := iter.Value()
		m := ir.Model{Index: len(models)}

		if m.Name, _, err = lookupString(mv, "name"); err != nil {
			return nil, err
		}
		if m.Path, _, err = lookupString(mv, "path"); err != nil {
			return nil, err
		}

		if itersVal, ok := lookup(mv, "iterators"); ok {
			it, err := itersVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for it.Next() {
				variable, err := parseIterator(it.Value())
				if err != nil {
					return nil, err
				}
				m.Iterators = append(m.Iterators, variable)
			}
		}

		models = append(models, m)
	}
	return models, nil
}

// parseIterator reads one iterator variable. Values are either listed or
// given as an inclusive from/to range with an optional step (default 1).
func parseIterator(v cue.Value) (ir.IteratorVariable, error) {
	var variable ir.IteratorVariable

	name, _, err := lookupString(v, "name")
	if err != nil {
		return variable, err
	}
	variable.Name = name

	valuesVal, hasValues := lookup(v, "values")
	_, hasFrom := lookup(v, "from")
	_, hasTo := lookup(v, "to")

	switch {
	case hasValues && (hasFrom || hasTo):
		return variable, &CompileError{
			Field:   "iterators." + name,
			Message: "use either values or from/to, not both",
			Pos:     v.Pos(),
		}
	case hasValues:
		iter, err := valuesVal.List()
		if err != nil {
			return variable, formatCUEError(err)
		}
		variable.Values = []float64{}
		for iter.Next() {
			f, err := iter.Value().Float64()
			if err != nil {
				return variable, formatCUEError(err)
			}
			variable.Values = append(variable.Values, f)
		}
	case hasFrom && hasTo:
		values, err := expandRange(v)
		if err != nil {
			return variable, err
		}
		variable.Values = values
	case hasFrom || hasTo:
		return variable, &CompileError{
			Field:   "iterators." + name,
			Message: "a range needs both from and to",
			Pos:     v.Pos(),
		}
	}

	return variable, nil
}

func expandRange(v cue.Value) ([]float64, error) {
	number := func(field string, def float64) (float64, error) {
		f, ok := lookup(v, field)
		if !ok {
			return def, nil
		}
		n, err := f.Float64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return n, nil
	}

	from, err := number("from", 0)
	if err != nil {
		return nil, err
	}
	to, err := number("to", 0)
	if err != nil {
		return nil, err
	}
	step, err := number("step", 1)
	if err != nil {
		return nil, err
	}

	if to < from {
		return nil, &CompileError{
			Field:   "iterators",
			Message: fmt.Sprintf("range from %g to %g is empty", from, to),
			Pos:     v.Pos(),
		}
	}

	// The epsilon keeps an end point reached by a fractional step.
	count := math.Floor((to-from)/step+1e-9) + 1
	if count > maxRangeValues {
		return nil, &CompileError{
			Field:   "iterators",
			Message: fmt.Sprintf("range expands to more than %d values", maxRangeValues),
			Pos:     v.Pos(),
		}
	}

	values := make([]float64, int(count))
	for i := range values {
		values[i] = from + float64(i)*step
	}
	return values, nil
}

// parseScripts reads the script pair. Each script is inline or a file,
// never both.
func parseScripts(v cue.Value, baseDir string, def *Definition) error {
	scriptsVal := v.LookupPath(cue.ParsePath("scripts"))
	if !scriptsVal.Exists() {
		return &CompileError{
			Field:   "scripts",
			Message: "scripts are required",
			Pos:     v.Pos(),
		}
	}

	read := func(role string) (string, error) {
		inline, hasInline, err := lookupString(scriptsVal, role)
		if err != nil {
			return "", err
		}
		file, hasFile, err := lookupString(scriptsVal, role+"_file")
		if err != nil {
			return "", err
		}
		if hasInline && hasFile {
			return "", &CompileError{
				Field:   "scripts." + role,
				Message: fmt.Sprintf("use either %s or %s_file, not both", role, role),
				Pos:     scriptsVal.Pos(),
			}
		}
		if !hasFile {
			return inline, nil
		}

		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &CompileError{
				Field:   "scripts." + role + "_file",
				Message: fmt.Sprintf("cannot read script: %v", err),
				Pos:     scriptsVal.Pos(),
			}
		}
		def.ScriptFiles[role] = path
		return string(data), nil
	}

	var err error
	if def.Routine.Scripts.Initialization, err = read(ScriptInitialization); err != nil {
		return err
	}
	if def.Routine.Scripts.Repetitive, err = read(ScriptRepetitive); err != nil {
		return err
	}
	return nil
}
