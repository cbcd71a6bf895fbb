package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence/file"
	"github.com/kchakrav/CRMApp-sub002/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *models.Document {
	signal := testutil.Signal("node_3", "order.paid", testutil.WithPosition(400, 120))
	signal.ExternalSignal().TimeoutEnabled = true
	signal.ExternalSignal().TimeoutValue = 2
	signal.ExternalSignal().TimeoutUnit = models.TimeoutUnitDays

	doc := testutil.Document(
		testutil.Nodes(
			testutil.Entry("node_1", testutil.WithPosition(50, 50)),
			testutil.Email("node_2", testutil.WithName("Welcome")),
			signal,
			testutil.Jump("node_4", "node_2"),
		),
		testutil.Connect("node_1", "node_2"),
		testutil.Connect("node_2", "node_3"),
		testutil.ConnectTransition("node_3", "node_4", models.TransitionTimeout),
	)
	doc.CanvasState = models.CanvasState{Zoom: 0.8, Pan: models.Position{X: -10, Y: 25}}

	return doc
}

func TestPersistence_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence("file://" + t.TempDir())

	doc := sampleDocument()
	require.NoError(t, p.SaveWorkflow(ctx, "welcome-flow", doc))

	loaded, err := p.WorkflowByID(ctx, "welcome-flow")
	require.NoError(t, err)

	assert.Equal(t, doc, loaded)
}

func TestPersistence_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	require.NoError(t, p.SaveWorkflow(ctx, "wf", sampleDocument()))
	require.NoError(t, p.SaveWorkflow(ctx, "wf", models.NewDocument()))

	loaded, err := p.WorkflowByID(ctx, "wf")
	require.NoError(t, err)
	assert.Empty(t, loaded.Nodes)
	assert.Empty(t, loaded.Connections)
}

func TestPersistence_NotFound(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	_, err := p.WorkflowByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = p.DeleteWorkflow(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_RejectsUnsafeIDs(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", "-leading", "with space"} {
		err := p.SaveWorkflow(ctx, id, models.NewDocument())
		assert.True(t, persistence.IsInvalidWorkflowID(err), id)
	}
}

func TestPersistence_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence(root)

	list, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, p.SaveWorkflow(ctx, "b", models.NewDocument()))
	require.NoError(t, p.SaveWorkflow(ctx, "a", models.NewDocument()))
	require.NoError(t, os.WriteFile(filepath.Join(root, "workflows", "notes.txt"), []byte("x"), 0600))

	list, err = p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.False(t, list[0].UpdatedAt.IsZero())

	require.NoError(t, p.DeleteWorkflow(ctx, "a"))

	list, err = p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestPersistence_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "workflows"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "workflows", "bad.json"), []byte(`{"nodes": [{"id": 3}]}`), 0600))

	_, err := p.WorkflowByID(ctx, "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidDocument)
}

func TestPersistence_HealthCheck(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, file.NewPersistence(t.TempDir()).HealthCheck(ctx))
	assert.ErrorIs(t, file.NewPersistence(filepath.Join(t.TempDir(), "nope")).HealthCheck(ctx), os.ErrNotExist)
}
