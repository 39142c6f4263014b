package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// BoundingBox positions a letter relative to its neighbours and the line.
// All values are fractions of the variation image size.
type BoundingBox struct {
	StartX            float64 `json:"start_x" yaml:"start_x"`
	EndX              float64 `json:"end_x" yaml:"end_x"`
	BaselineY         float64 `json:"baseline_y" yaml:"baseline_y"`
	ConnectAtBaseline bool    `json:"connect_at_baseline" yaml:"connect_at_baseline"`
}

// Validate checks the fractions are in range.
func (b BoundingBox) Validate() error {
	for name, v := range map[string]float64{"start_x": b.StartX, "end_x": b.EndX, "baseline_y": b.BaselineY} {
		if v < 0 || v > 1.5 {
			return fmt.Errorf("%s %.3f out of range", name, v)
		}
	}
	if b.EndX < b.StartX {
		return fmt.Errorf("end_x %.3f before start_x %.3f", b.EndX, b.StartX)
	}
	return nil
}

// BoundingBoxes maps a character to its bounding box.
type BoundingBoxes map[rune]BoundingBox

// LoadBoundingBoxes reads a bounding box file. Files ending in .yaml or .yml
// are parsed as YAML, anything else as JSON.
func LoadBoundingBoxes(path string) (BoundingBoxes, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read bounding boxes: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseBoundingBoxesYAML(data)
	default:
		return ParseBoundingBoxesJSON(data)
	}
}

// ParseBoundingBoxesJSON parses a JSON object keyed by character. Each value
// is either [start_x, end_x, baseline_y] or an object with named fields.
func ParseBoundingBoxesJSON(data []byte) (BoundingBoxes, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bounding boxes: %w", err)
	}
	return fromRaw(raw)
}

// ParseBoundingBoxesYAML parses the YAML equivalent of the JSON format.
func ParseBoundingBoxesYAML(data []byte) (BoundingBoxes, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bounding boxes: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw map[string]any) (BoundingBoxes, error) {
	out := make(BoundingBoxes, len(raw))
	for key, v := range raw {
		if utf8.RuneCountInString(key) != 1 {
			return nil, fmt.Errorf("bounding box key %q must be a single character", key)
		}
		r, _ := utf8.DecodeRuneInString(key)
		b, err := bboxFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("bounding box %q: %w", key, err)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("bounding box %q: %w", key, err)
		}
		out[r] = b
	}
	return out, nil
}

func bboxFromValue(v any) (BoundingBox, error) {
	switch val := v.(type) {
	case []any:
		if len(val) < 3 || len(val) > 4 {
			return BoundingBox{}, fmt.Errorf("expected 3 or 4 values, got %d", len(val))
		}
		var nums [3]float64
		for i := range nums {
			f, ok := toFloat(val[i])
			if !ok {
				return BoundingBox{}, fmt.Errorf("value %d is not a number", i)
			}
			nums[i] = f
		}
		b := BoundingBox{StartX: nums[0], EndX: nums[1], BaselineY: nums[2]}
		if len(val) == 4 {
			connect, ok := val[3].(bool)
			if !ok {
				return BoundingBox{}, fmt.Errorf("connect_at_baseline is not a boolean")
			}
			b.ConnectAtBaseline = connect
		}
		return b, nil
	case map[string]any:
		var b BoundingBox
		fields := map[string]*float64{"start_x": &b.StartX, "end_x": &b.EndX, "baseline_y": &b.BaselineY}
		for name, dst := range fields {
			raw, ok := val[name]
			if !ok {
				return BoundingBox{}, fmt.Errorf("missing %s", name)
			}
			f, ok := toFloat(raw)
			if !ok {
				return BoundingBox{}, fmt.Errorf("%s is not a number", name)
			}
			*dst = f
		}
		if raw, ok := val["connect_at_baseline"]; ok {
			connect, ok := raw.(bool)
			if !ok {
				return BoundingBox{}, fmt.Errorf("connect_at_baseline is not a boolean")
			}
			b.ConnectAtBaseline = connect
		}
		return b, nil
	default:
		return BoundingBox{}, fmt.Errorf("unsupported value %T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
