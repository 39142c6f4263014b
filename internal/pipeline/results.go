package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StageResult records the outcome of one stage.
type StageResult struct {
	Name      string `json:"name"`
	ElapsedNs int64  `json:"elapsed_ns"`
	Error     string `json:"error,omitempty"`
}

// Report summarizes a pipeline run.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Stages    []StageResult `json:"stages"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	TotalNs   int64         `json:"total_ns"`
	Memory    MemStats      `json:"memory"`
}

func newReport() *Report {
	return &Report{StartedAt: time.Now()}
}

func (r *Report) add(name string, elapsed time.Duration, err error) {
	res := StageResult{Name: name, ElapsedNs: elapsed.Nanoseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	r.Stages = append(r.Stages, res)
}

func (r *Report) finish(err error) {
	r.Succeeded = err == nil
	if err != nil {
		r.Error = err.Error()
	}
	r.TotalNs = time.Since(r.StartedAt).Nanoseconds()
	r.Memory = GetMemStats()
}

// ToJSON serializes the report to pretty JSON.
func (r *Report) ToJSON() (string, error) {
	if r == nil {
		return "", errors.New("nil report")
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Summary renders one line per stage with its duration.
func (r *Report) Summary() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, s := range r.Stages {
		status := "ok"
		if s.Error != "" {
			status = "failed"
		}
		d := time.Duration(s.ElapsedNs).Round(time.Millisecond)
		_, _ = fmt.Fprintf(&sb, "%-16s %-7s %v\n", s.Name, status, d)
	}
	return sb.String()
}
