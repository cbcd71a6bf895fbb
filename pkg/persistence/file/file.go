// Package file stores workflow documents as JSON files under a root directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
)

const workflowsDir = "workflows"

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
}

// NewPersistence creates a new instance of Persistence with the specified root directory. A
// file:// prefix is accepted.
func NewPersistence(root string) persistence.Persistence {
	return &Persistence{root: strings.TrimPrefix(root, "file://")}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) dir() string {
	return filepath.Join(fp.root, workflowsDir)
}

func (fp *Persistence) path(id string) string {
	return filepath.Join(fp.dir(), id+".json")
}

// Workflows lists stored workflows ordered by id.
func (fp *Persistence) Workflows(_ context.Context) ([]persistence.WorkflowInfo, error) {
	entries, err := os.ReadDir(fp.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []persistence.WorkflowInfo{}, nil
		}

		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	out := make([]persistence.WorkflowInfo, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat workflow file %s: %w", name, err)
		}

		out = append(out, persistence.WorkflowInfo{
			ID:        strings.TrimSuffix(name, ".json"),
			UpdatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Document, error) {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(fp.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("load", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("load", id, err)
	}

	doc, err := models.ParseDocument(body)
	if err != nil {
		return nil, persistence.NewWorkflowError("load", id, err)
	}

	return doc, nil
}

// SaveWorkflow writes the document to a temporary file and renames it over the previous version,
// so a crash never leaves a truncated document behind.
func (fp *Persistence) SaveWorkflow(_ context.Context, id string, doc *models.Document) error {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return err
	}

	if err := os.MkdirAll(fp.dir(), 0750); err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	tmp, err := os.CreateTemp(fp.dir(), id+".*.tmp")
	if err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return persistence.NewWorkflowError("save", id, err)
	}

	if err := tmp.Close(); err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	if err := os.Rename(tmp.Name(), fp.path(id)); err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	return nil
}

func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return err
	}

	err := os.Remove(fp.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("delete", id, err)
	}

	return nil
}
