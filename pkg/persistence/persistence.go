// Package persistence stores one canvas document per workflow id.
package persistence

import (
	"context"
	"regexp"
	"time"

	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

// WorkflowInfo describes a stored workflow without loading its document.
type WorkflowInfo struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persistence loads and saves whole documents. Save replaces whatever was stored under the id;
// there is no partial update or versioning.
type Persistence interface {
	Workflows(ctx context.Context) ([]WorkflowInfo, error)
	WorkflowByID(ctx context.Context, id string) (*models.Document, error)
	SaveWorkflow(ctx context.Context, id string, doc *models.Document) error
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

var workflowIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateWorkflowID rejects ids that are unsafe as file names or storage keys.
func ValidateWorkflowID(id string) error {
	if !workflowIDPattern.MatchString(id) {
		return NewWorkflowError("validate", id, ErrInvalidWorkflowID)
	}

	return nil
}
