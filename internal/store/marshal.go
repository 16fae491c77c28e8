package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/labroutine/internal/ir"
)

// marshalRecord converts a record to JSON TEXT for storage.
// HTML escaping is disabled so the stored text matches what scripts wrote.
func marshalRecord(rec ir.NextModelRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalRecord parses record TEXT.
// Numbers in script variables are decoded via json.Number so integers above
// 2^53 keep their precision, then normalized to the Go types the evaluator
// produces.
func unmarshalRecord(data string) (ir.NextModelRecord, error) {
	var rec ir.NextModelRecord
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return ir.NextModelRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.RoutineArray == nil {
		rec.RoutineArray = []float64{}
	}
	for k, v := range rec.Locals {
		nv, err := normalizeValue(v)
		if err != nil {
			return ir.NextModelRecord{}, fmt.Errorf("unmarshal record: variable %q: %w", k, err)
		}
		rec.Locals[k] = nv
	}
	return rec, nil
}

// normalizeValue maps decoded JSON onto the script value types: int64 for
// whole numbers, float64 otherwise, []float64 or []string for lists.
func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case string, bool:
		return val, nil
	case []any:
		return normalizeList(val)
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func normalizeList(list []any) (any, error) {
	if len(list) == 0 {
		return []float64{}, nil
	}
	if _, ok := list[0].(string); ok {
		out := make([]string, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("mixed list element %T", e)
			}
			out[i] = s
		}
		return out, nil
	}
	out := make([]float64, len(list))
	for i, e := range list {
		n, ok := e.(json.Number)
		if !ok {
			return nil, fmt.Errorf("mixed list element %T", e)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
