package pipeline

import (
	"sync"
	"time"
)

// Phase identifies the pipeline stage currently running.
type Phase string

const (
	PhaseExtracting  Phase = "extracting"
	PhaseFiltering   Phase = "filtering"
	PhaseClassifying Phase = "classifying"
	PhaseBuilding    Phase = "building"
	PhaseGenerating  Phase = "generating"
	PhaseRendering   Phase = "rendering"
	PhaseAssembling  Phase = "assembling"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Report tracks the state of a single conversion run. Safe for
// concurrent reads while the run progresses, so the preview server can
// poll it.
type Report struct {
	mu sync.Mutex

	Input string `json:"input"`
	Mode  string `json:"mode"`
	Phase Phase  `json:"phase"`

	Counts Counts `json:"counts"`

	Warnings   []string  `json:"warnings"`
	OutputPath string    `json:"output_path,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Counts summarizes what each stage produced.
type Counts struct {
	Pages        int `json:"pages"`
	PagesSkipped int `json:"pages_skipped"`
	NoiseGroups  int `json:"noise_groups"`
	Drugs        int `json:"drugs"`
	Cards        int `json:"cards"`
	Images       int `json:"images"`
}

func NewReport(input, mode string) *Report {
	now := time.Now()
	return &Report{
		Input:     input,
		Mode:      mode,
		Phase:     PhaseExtracting,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetPhase advances the run to the next stage.
func (r *Report) SetPhase(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phase = p
	r.UpdatedAt = time.Now()
}

// AddWarnings records stage warnings.
func (r *Report) AddWarnings(warnings ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, warnings...)
	r.UpdatedAt = time.Now()
}

// Update mutates the counters atomically.
func (r *Report) Update(fn func(*Counts)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.Counts)
	r.UpdatedAt = time.Now()
}

// SetOutput records the written deck path.
func (r *Report) SetOutput(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OutputPath = path
	r.UpdatedAt = time.Now()
}

// ReportSnapshot is a read-only, JSON-safe copy of run state.
type ReportSnapshot struct {
	Input      string    `json:"input"`
	Mode       string    `json:"mode"`
	Phase      Phase     `json:"phase"`
	Counts     Counts    `json:"counts"`
	Warnings   []string  `json:"warnings"`
	OutputPath string    `json:"output_path,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Report) Snapshot() ReportSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ReportSnapshot{
		Input:      r.Input,
		Mode:       r.Mode,
		Phase:      r.Phase,
		Counts:     r.Counts,
		Warnings:   warnings,
		OutputPath: r.OutputPath,
		StartedAt:  r.StartedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
