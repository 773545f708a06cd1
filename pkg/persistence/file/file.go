// Package file stores the workflow slot as a JSON file on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/persistence"
)

// Persistence implements persistence.Slot with one file per slot key
// under a root directory.
type Persistence struct {
	root string
	key  string
}

// NewPersistence creates the root directory if needed. The root may be
// given as a file:// URL.
func NewPersistence(root, key string) (*Persistence, error) {
	cleanRoot := filepath.Clean(strings.Replace(root, "file://", "", 1))

	if key == "" {
		key = persistence.DefaultSlotKey
	}

	if err := os.MkdirAll(cleanRoot, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &Persistence{root: cleanRoot, key: key}, nil
}

func (fp *Persistence) path() string {
	return filepath.Join(fp.root, fp.key+".json")
}

func (fp *Persistence) Load(_ context.Context) (*models.Workflow, error) {
	body, err := os.ReadFile(fp.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewSlotError("Load", fp.key, persistence.ErrSlotEmpty)
		}

		return nil, persistence.NewSlotError("Load", fp.key, err)
	}

	workflow, err := persistence.Decode(body)
	if err != nil {
		return nil, persistence.NewSlotError("Load", fp.key, err)
	}

	return workflow, nil
}

// Save writes to a temporary file and renames it over the slot so a
// crash never leaves a half-written slot behind.
func (fp *Persistence) Save(_ context.Context, workflow *models.Workflow) error {
	data, err := persistence.Encode(workflow)
	if err != nil {
		return persistence.NewSlotError("Save", fp.key, err)
	}

	tmp, err := os.CreateTemp(fp.root, fp.key+"-*.tmp")
	if err != nil {
		return persistence.NewSlotError("Save", fp.key, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return persistence.NewSlotError("Save", fp.key, err)
	}

	if err := tmp.Close(); err != nil {
		return persistence.NewSlotError("Save", fp.key, err)
	}

	if err := os.Rename(tmp.Name(), fp.path()); err != nil {
		return persistence.NewSlotError("Save", fp.key, err)
	}

	return nil
}

func (fp *Persistence) Clear(_ context.Context) error {
	err := os.Remove(fp.path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistence.NewSlotError("Clear", fp.key, err)
	}

	return nil
}

func (fp *Persistence) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(fp.path())

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, persistence.NewSlotError("Exists", fp.key, err)
	}
}

// HealthCheck verifies the root directory still exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file storage.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
