package ir

import "strings"

// PrimaryModelIndex is the index of the primary model in a routine.
const PrimaryModelIndex = 0

// DefaultScanCount is the number of completed scans after which
// stop-after-scan halts the routine when no count is configured.
const DefaultScanCount = 1

// IteratorVariable is one scanned parameter with its enumerated values.
type IteratorVariable struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Model is a hardware output sequence the routine can select for a cycle.
// Index 0 is the primary model, higher indices are secondary models.
type Model struct {
	Index     int                `json:"index"`
	Name      string             `json:"name"`
	Path      string             `json:"path"`
	Iterators []IteratorVariable `json:"iterators,omitempty"`
}

// ScanSize returns the number of iterations in one scan of the model:
// the product of the value counts of its iterators. A model without
// iterators is not iterating and has scan size 0.
func (m Model) ScanSize() int {
	if len(m.Iterators) == 0 {
		return 0
	}
	size := 1
	for _, it := range m.Iterators {
		size *= len(it.Values)
	}
	return size
}

// IsIterating reports whether the model scans any iterator variables.
func (m Model) IsIterating() bool {
	return m.ScanSize() > 0
}

// Scripts holds the control script pair of a routine.
// The initialization script runs once, prepended to the repetitive script
// on the first cycle of a run.
type Scripts struct {
	Initialization string `json:"initialization"`
	Repetitive     string `json:"repetitive"`
}

// Combined returns the script text evaluated on the first cycle of a run.
func (s Scripts) Combined() string {
	if s.Initialization == "" {
		return s.Repetitive
	}
	return s.Initialization + "\n" + s.Repetitive
}

// Routine is a compiled measurement routine definition.
type Routine struct {
	Name              string  `json:"name"`
	Models            []Model `json:"models"`
	Scripts           Scripts `json:"scripts"`
	ScanOnlyOnce      bool    `json:"scan_only_once"`
	StopAfterScan     bool    `json:"stop_after_scan"`
	ScanCount         int     `json:"scan_count"`
	ShuffleIterations bool    `json:"shuffle_iterations"`
	Seed              uint64  `json:"seed"`
	ControlLeCroy     bool    `json:"control_lecroy"`
}

// NumModels returns the number of models (primary plus secondary).
func (r Routine) NumModels() int {
	return len(r.Models)
}

// Primary returns the primary model.
func (r Routine) Primary() Model {
	return r.Models[PrimaryModelIndex]
}

// Secondary returns the secondary models in index order.
func (r Routine) Secondary() []Model {
	if len(r.Models) <= 1 {
		return nil
	}
	return r.Models[1:]
}

// SecondaryPaths returns the paths of the secondary models.
func (r Routine) SecondaryPaths() []string {
	secondary := r.Secondary()
	paths := make([]string, len(secondary))
	for i, m := range secondary {
		paths[i] = m.Path
	}
	return paths
}

// HasModel reports whether index refers to a model of this routine.
func (r Routine) HasModel(index int) bool {
	return index >= 0 && index < len(r.Models)
}

// ModelByLabel finds a model by name, falling back to its path.
// Name matching ignores case; path matching is exact.
func (r Routine) ModelByLabel(label string) (int, bool) {
	for _, m := range r.Models {
		if strings.EqualFold(m.Name, label) {
			return m.Index, true
		}
	}
	for _, m := range r.Models {
		if m.Path == label {
			return m.Index, true
		}
	}
	return 0, false
}

// EffectiveScanCount returns ScanCount, or DefaultScanCount when unset.
func (r Routine) EffectiveScanCount() int {
	if r.ScanCount <= 0 {
		return DefaultScanCount
	}
	return r.ScanCount
}
