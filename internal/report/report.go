// Package report renders a finished run's statistics to an output target.
package report

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
)

// Sink receives the final DataStats of a run.
type Sink interface {
	Generate(stats model.DataStats) error
}

// FileSink writes the report as indented JSON, creating parent
// directories as needed.
type FileSink struct {
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Generate(stats model.DataStats) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrap(err, "create report dir")
	}

	buf, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(f.path, buf, 0o644); err != nil {
		return errors.Wrap(err, "write report")
	}

	logs.Infof("report: wrote %s (%d bars, %d/%d win/lose)",
		f.path, len(stats.Lines), stats.WinTrades, stats.LoseTrades)
	return nil
}
