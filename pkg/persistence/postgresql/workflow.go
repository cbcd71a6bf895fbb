package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// List returns every stored workflow ordered by id.
func (r *WorkflowRepository) List(ctx context.Context) ([]persistence.WorkflowInfo, error) {
	query := `
		SELECT
			id
		  , updated_at
		FROM canvas_workflows
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	workflows := make([]persistence.WorkflowInfo, 0)

	for rows.Next() {
		var (
			id        string
			updatedAt time.Time
		)

		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, persistence.WorkflowInfo{ID: id, UpdatedAt: updatedAt.UTC()})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return workflows, nil
}

// GetByID loads the document stored under id.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return nil, err
	}

	var body []byte

	err := r.db.QueryRowContext(ctx, `SELECT document FROM canvas_workflows WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

// Save upserts the whole document.
func (r *WorkflowRepository) Save(ctx context.Context, id string, doc *models.Document) error {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	query := `
		INSERT INTO canvas_workflows (id, document, node_count, connection_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document
		  , node_count = EXCLUDED.node_count
		  , connection_count = EXCLUDED.connection_count
		  , updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query, id, string(body), len(doc.Nodes), len(doc.Connections))
	if err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM canvas_workflows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewWorkflowError("delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
