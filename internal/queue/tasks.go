package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/store"

	"github.com/hibiken/asynq"
)

const (
	TaskVectorizeDocument = "document:vectorize"
	TaskEnsureVectors     = "vectors:ensure"
)

type VectorizePayload struct {
	DocumentID string `json:"document_id"`
}

type EnsurePayload struct {
	Force bool `json:"force"`
	Limit int  `json:"limit"`
}

// Task creators
func NewVectorizeTask(docID string) (*asynq.Task, error) {
	payload, err := json.Marshal(VectorizePayload{DocumentID: docID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskVectorizeDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
		asynq.Retention(time.Hour),
	), nil
}

func NewEnsureTask(force bool, limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(EnsurePayload{Force: force, Limit: limit})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskEnsureVectors,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("low"),
	), nil
}

// Client enqueues background work on the asynq Redis queue
type Client struct {
	client *asynq.Client
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// EnqueueVectorize schedules (re-)vectorization of one document
func (c *Client) EnqueueVectorize(ctx context.Context, docID string) error {
	task, err := NewVectorizeTask(docID)
	if err != nil {
		return err
	}
	// tasks carry no id, so every re-upload gets its own vectorize run
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue vectorize %s: %w", docID, err)
	}
	logger.Debug("Vectorize task enqueued", "document_id", docID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// EnqueueEnsure schedules a gradual ensure pass
func (c *Client) EnqueueEnsure(ctx context.Context, force bool, limit int) error {
	task, err := NewEnsureTask(force, limit)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Vectorizer is the work the task handlers delegate to
type Vectorizer interface {
	Vectorize(ctx context.Context, docID string) error
	EnsureVectors(ctx context.Context, force bool, limit int) (int, error)
}

// Task handlers
type TaskProcessor struct {
	vectorizer Vectorizer
}

func NewTaskProcessor(vectorizer Vectorizer) *TaskProcessor {
	return &TaskProcessor{vectorizer: vectorizer}
}

// Register attaches the handlers to mux
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskVectorizeDocument, p.ProcessVectorize)
	mux.HandleFunc(TaskEnsureVectors, p.ProcessEnsure)
}

func (p *TaskProcessor) ProcessVectorize(ctx context.Context, t *asynq.Task) error {
	var payload VectorizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("empty document id: %w", asynq.SkipRetry)
	}

	logger.Info("Vectorizing document", "document_id", payload.DocumentID)
	if err := p.vectorizer.Vectorize(ctx, payload.DocumentID); err != nil {
		if errors.Is(err, ai.ErrMissingCredentials) || errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vectorize %s: %v: %w", payload.DocumentID, err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func (p *TaskProcessor) ProcessEnsure(ctx context.Context, t *asynq.Task) error {
	var payload EnsurePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	n, err := p.vectorizer.EnsureVectors(ctx, payload.Force, payload.Limit)
	if err != nil {
		return err
	}
	logger.Info("Vector ensure pass finished", "indexed", n, "force", payload.Force)
	return nil
}
