// Package report exports pipeline runs as YAML documents.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/deployline/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Document is the YAML shape of an exported run.
type Document struct {
	ID          string     `yaml:"id"`
	Service     string     `yaml:"service"`
	Endpoint    string     `yaml:"endpoint,omitempty"`
	Status      string     `yaml:"status"`
	FailedStage string     `yaml:"failed_stage,omitempty"`
	StartedAt   time.Time  `yaml:"started_at"`
	FinishedAt  time.Time  `yaml:"finished_at"`
	Duration    string     `yaml:"duration"`
	Stages      []StageDoc `yaml:"stages"`
}

// StageDoc is one stage outcome within a Document.
type StageDoc struct {
	Name     string `yaml:"name"`
	Status   string `yaml:"status"`
	Duration string `yaml:"duration"`
	Detail   string `yaml:"detail,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// NewDocument converts a run into its exported form.
func NewDocument(run *domain.Run) Document {
	doc := Document{
		ID:          run.ID,
		Service:     run.Service,
		Endpoint:    run.Endpoint,
		Status:      string(run.Status),
		FailedStage: run.FailedStage,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Duration:    run.Duration().String(),
		Stages:      make([]StageDoc, 0, len(run.Stages)),
	}
	for _, o := range run.Stages {
		doc.Stages = append(doc.Stages, StageDoc{
			Name:     o.Stage,
			Status:   o.Status(),
			Duration: o.Duration().String(),
			Detail:   o.Detail,
			Error:    o.ErrorDetail,
		})
	}
	return doc
}

// Encode writes run to w as YAML.
func Encode(w io.Writer, run *domain.Run) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(run)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes run to path, creating parent directories as needed.
// The file is replaced atomically.
func WriteFile(path string, run *domain.Run) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.yaml")
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, run); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}
