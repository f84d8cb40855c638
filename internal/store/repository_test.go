package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"lab-dashboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenBackend struct{}

func (brokenBackend) Name() string { return "broken" }
func (brokenBackend) List(context.Context) ([]models.Document, error) {
	return nil, errors.New("connection refused")
}
func (brokenBackend) Get(context.Context, string) (*models.Document, error) {
	return nil, errors.New("connection refused")
}
func (brokenBackend) Put(context.Context, models.Document) error {
	return errors.New("connection refused")
}
func (brokenBackend) Reset(context.Context) error { return errors.New("connection refused") }

func newTestRepository(backends ...Backend) *Repository {
	r := NewRepository(&MemoryVersions{}, backends...)
	n := 0
	r.newID = func() string {
		n++
		return "doc-" + string(rune('0'+n))
	}
	r.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, n, 0, time.UTC) }
	return r
}

func TestMergeDocumentsPrefersContent(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	memory := []models.Document{{ID: "a", Name: "a.pdf", UploadedAt: at}}
	kv := []models.Document{
		{ID: "a", Name: "a.pdf", Content: "本文", UploadedAt: at},
		{ID: "b", Name: "b.pdf", UploadedAt: at.Add(time.Hour)},
	}
	blob := []models.Document{{ID: "a", Name: "a.pdf", Content: "古い本文", UploadedAt: at}}

	merged := MergeDocuments(memory, kv, blob)

	require.Len(t, merged, 2)
	assert.Equal(t, "b", merged[0].ID)
	assert.Equal(t, "本文", merged[1].Content)
}

func TestUpsertByNameKeepsID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(NewMemoryBackend())

	first, err := repo.UpsertByName(ctx, "小野_卒論.pdf", models.TypeThesis)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, first.Status)

	ready := models.StatusReady
	content := "本文"
	_, err = repo.Update(ctx, first.ID, models.DocumentPatch{Status: &ready, Content: &content})
	require.NoError(t, err)

	second, err := repo.UpsertByName(ctx, "小野_卒論.pdf", models.TypeThesis)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StatusProcessing, second.Status)
	assert.Empty(t, second.Content)

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpdateStatusTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(NewMemoryBackend())

	doc, err := repo.UpsertByName(ctx, "notes.txt", models.TypeDocument)
	require.NoError(t, err)

	ready := models.StatusReady
	updated, err := repo.Update(ctx, doc.ID, models.DocumentPatch{Status: &ready})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, updated.Status)

	failed := models.StatusError
	_, err = repo.Update(ctx, doc.ID, models.DocumentPatch{Status: &failed})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// same status is not a transition
	title := "Notes"
	_, err = repo.Update(ctx, doc.ID, models.DocumentPatch{Status: &ready, Title: &title})
	assert.NoError(t, err)
}

func TestUpdateMissingDocument(t *testing.T) {
	repo := newTestRepository(NewMemoryBackend())
	ready := models.StatusReady

	_, err := repo.Update(context.Background(), "nope", models.DocumentPatch{Status: &ready})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWritesSurviveOneBrokenBackend(t *testing.T) {
	ctx := context.Background()
	versions := &MemoryVersions{}
	repo := NewRepository(versions, NewMemoryBackend(), brokenBackend{})

	doc, err := repo.UpsertByName(ctx, "paper.pdf", models.TypePaper)
	require.NoError(t, err)

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	v, err := repo.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestAllBackendsBroken(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(nil, brokenBackend{})

	_, err := repo.List(ctx)
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "broken", berr.Backend)
	assert.Equal(t, "list", berr.Op)

	_, err = repo.UpsertByName(ctx, "x.pdf", models.TypeDocument)
	assert.Error(t, err)
}

func TestResetClearsAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(NewMemoryBackend())

	_, err := repo.UpsertByName(ctx, "a.pdf", models.TypeDocument)
	require.NoError(t, err)
	before, _ := repo.Version(ctx)

	require.NoError(t, repo.Reset(ctx))

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	after, _ := repo.Version(ctx)
	assert.Greater(t, after, before)
}
