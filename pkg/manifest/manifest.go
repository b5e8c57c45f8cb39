// Package manifest records what a harvest run found and stored.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"imgharvest/internal/downloader"
)

// Manifest summarizes one run
type Manifest struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	SearchURL  string    `json:"search_url" yaml:"search_url"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	HarvestState string `json:"harvest_state" yaml:"harvest_state"`
	Iterations   int    `json:"iterations" yaml:"iterations"`
	Discovered   int    `json:"discovered" yaml:"discovered"`
	TargetCount  int    `json:"target_count" yaml:"target_count"`

	Succeeded int    `json:"succeeded" yaml:"succeeded"`
	Skipped   int    `json:"skipped" yaml:"skipped"`
	Failed    int    `json:"failed" yaml:"failed"`
	Items     []Item `json:"items" yaml:"items"`
}

// Item is one download outcome
type Item struct {
	Index      int    `json:"index" yaml:"index"`
	URL        string `json:"url" yaml:"url"`
	Status     string `json:"status" yaml:"status"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Bytes      int64  `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// New starts a manifest with a fresh run ID
func New(searchURL string, targetCount int) *Manifest {
	return &Manifest{
		RunID:       uuid.NewString(),
		SearchURL:   searchURL,
		StartedAt:   time.Now().UTC(),
		TargetCount: targetCount,
	}
}

// SetHarvest records the outcome of the discovery loop
func (m *Manifest) SetHarvest(state string, iterations, discovered int) {
	m.HarvestState = state
	m.Iterations = iterations
	m.Discovered = discovered
}

// AddReport copies the download outcomes and stamps the finish time
func (m *Manifest) AddReport(report downloader.Report) {
	m.Succeeded = report.Succeeded
	m.Skipped = report.Skipped
	m.Failed = report.Failed
	m.Items = make([]Item, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		item := Item{
			Index:      o.Index,
			URL:        o.URL,
			Status:     string(o.Status),
			StatusCode: o.StatusCode,
			Bytes:      o.Bytes,
		}
		if o.Path != "" {
			item.File = filepath.Base(o.Path)
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		m.Items = append(m.Items, item)
	}
	m.FinishedAt = time.Now().UTC()
}

// FileName returns manifest.json or manifest.yaml
func FileName(format string) string {
	if isYAML(format) {
		return "manifest.yaml"
	}
	return "manifest.json"
}

func isYAML(format string) bool {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	return f == "yaml" || f == "yml"
}

// Marshal encodes the manifest as json or yaml
func (m *Manifest) Marshal(format string) ([]byte, error) {
	if isYAML(format) {
		data, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// Load reads a manifest, picking the decoder from the file extension
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if isYAML(filepath.Ext(path)) {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
