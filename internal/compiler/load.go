package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// LoadRoutine reads a routine file and compiles one routine from it.
// When name is empty the file must define exactly one routine.
func LoadRoutine(path, name string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routine file: %w", err)
	}
	def, err := CompileSource(path, data, name)
	if err != nil {
		return nil, err
	}
	def.File = path
	return def, nil
}

// CompileSource compiles one routine from CUE source. filename is used in
// error positions and as the base for relative script files.
func CompileSource(filename string, src []byte, name string) (*Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile routine schema: %w", err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	value := schema.Unify(user)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	names, err := routineNames(value)
	if err != nil {
		return nil, err
	}

	switch {
	case len(names) == 0:
		return nil, &CompileError{Field: "routine", Message: "no routine defined"}
	case name == "" && len(names) > 1:
		return nil, &CompileError{
			Field:   "routine",
			Message: fmt.Sprintf("file defines %d routines, choose one of %v", len(names), names),
		}
	case name == "":
		name = names[0]
	}

	rv := value.LookupPath(cue.MakePath(cue.Str("routine"), cue.Str(name)))
	if !rv.Exists() {
		return nil, &CompileError{
			Field:   "routine",
			Message: fmt.Sprintf("routine %q not found, have %v", name, names),
		}
	}

	return CompileRoutine(rv, filepath.Dir(filename))
}

// routineNames lists the routines a unified value defines, sorted.
func routineNames(v cue.Value) ([]string, error) {
	routines := v.LookupPath(cue.ParsePath("routine"))
	if !routines.Exists() {
		return nil, nil
	}
	iter, err := routines.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		names = append(names, iter.Selector().Unquoted())
	}
	sort.Strings(names)
	return names, nil
}
