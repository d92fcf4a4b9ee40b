package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

// SoulFileName is the single JSON document holding an entity's soul.
const SoulFileName = "soul.json"

// SoulFile reads and writes the persisted soul for one workspace.
type SoulFile struct {
	workspace string
	path      string
	logger    *zap.Logger
}

func NewSoulFile(workspace string, logger *zap.Logger) *SoulFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoulFile{
		workspace: workspace,
		path:      filepath.Join(workspace, SoulFileName),
		logger:    logger,
	}
}

// Path returns the soul file's location.
func (f *SoulFile) Path() string {
	return f.path
}

// Load returns the persisted soul, or nil when none exists. A document
// that does not decode or fails validation is reported as absence: the
// violation is logged and the caller falls back to an initial cycle
// instead of trusting broken state.
func (f *SoulFile) Load() (*domain.Soul, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read soul file %s: %w", f.path, err)
	}

	var soul domain.Soul
	if err := json.Unmarshal(data, &soul); err != nil {
		f.logger.Warn("soul file does not parse, treating as absent",
			zap.String("path", f.path),
			zap.Error(err))
		return nil, nil
	}

	if err := soul.Validate(); err != nil {
		f.logger.Warn("soul file failed validation, treating as absent",
			zap.String("path", f.path),
			zap.Error(err))
		return nil, nil
	}

	return &soul, nil
}

// Save writes the soul atomically: the document is staged in a temp file
// and renamed into place, so a killed process never leaves a half-written
// soul visible.
func (f *SoulFile) Save(soul *domain.Soul) error {
	if err := soul.Validate(); err != nil {
		return fmt.Errorf("save soul %s: %w", soul.ID, err)
	}

	if err := os.MkdirAll(f.workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", f.workspace, err)
	}

	data, err := json.MarshalIndent(soul, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal soul %s: %w", soul.ID, err)
	}

	tmp, err := os.CreateTemp(f.workspace, SoulFileName+".*")
	if err != nil {
		return fmt.Errorf("stage soul file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write soul file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close soul file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish soul file: %w", err)
	}

	return nil
}
