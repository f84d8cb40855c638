package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingVectorizer struct {
	vectorized []string
	ensured    []EnsurePayload
	err        error
}

func (r *recordingVectorizer) Vectorize(_ context.Context, docID string) error {
	r.vectorized = append(r.vectorized, docID)
	return r.err
}

func (r *recordingVectorizer) EnsureVectors(_ context.Context, force bool, limit int) (int, error) {
	r.ensured = append(r.ensured, EnsurePayload{Force: force, Limit: limit})
	return limit, r.err
}

func TestNewVectorizeTask(t *testing.T) {
	task, err := NewVectorizeTask("doc-1")
	require.NoError(t, err)

	assert.Equal(t, TaskVectorizeDocument, task.Type())
	var payload VectorizePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "doc-1", payload.DocumentID)
}

func TestProcessVectorize(t *testing.T) {
	rec := &recordingVectorizer{}
	p := NewTaskProcessor(rec)

	task, err := NewVectorizeTask("doc-1")
	require.NoError(t, err)
	require.NoError(t, p.ProcessVectorize(context.Background(), task))
	assert.Equal(t, []string{"doc-1"}, rec.vectorized)

	rec.err = errors.New("redis down")
	assert.Error(t, p.ProcessVectorize(context.Background(), task))
}

func TestProcessVectorizeBadPayloadSkipsRetry(t *testing.T) {
	p := NewTaskProcessor(&recordingVectorizer{})

	err := p.ProcessVectorize(context.Background(), asynq.NewTask(TaskVectorizeDocument, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.ProcessVectorize(context.Background(), asynq.NewTask(TaskVectorizeDocument, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessVectorizePermanentFailuresSkipRetry(t *testing.T) {
	task, err := NewVectorizeTask("doc-1")
	require.NoError(t, err)

	for _, cause := range []error{ai.ErrMissingCredentials, store.ErrNotFound} {
		p := NewTaskProcessor(&recordingVectorizer{err: cause})
		err := p.ProcessVectorize(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	}
}

func TestProcessEnsure(t *testing.T) {
	rec := &recordingVectorizer{}
	p := NewTaskProcessor(rec)

	task, err := NewEnsureTask(true, 5)
	require.NoError(t, err)
	require.NoError(t, p.ProcessEnsure(context.Background(), task))
	assert.Equal(t, []EnsurePayload{{Force: true, Limit: 5}}, rec.ensured)
}

func TestEnqueueVectorizeTwiceQueuesBoth(t *testing.T) {
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := NewClient(opt)
	defer client.Close()
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	ctx := context.Background()
	require.NoError(t, client.EnqueueVectorize(ctx, "doc-1"))
	// re-upload of the same document
	require.NoError(t, client.EnqueueVectorize(ctx, "doc-1"))

	info, err := inspector.GetQueueInfo("critical")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Pending)
}
