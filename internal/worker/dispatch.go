package worker

import (
	"context"
	"fmt"

	"github.com/ecocomply/ecocomply/internal/repository"
	"github.com/google/uuid"
)

// Dispatcher hands generation jobs to the queue. The generation
// orchestrator branches on the returned error explicitly: a dispatch failure
// is an expected, recoverable outcome (the pack degrades to ready without an
// artifact), so it must be a visible result rather than something caught in
// passing.
type Dispatcher interface {
	// Dispatch enqueues a pack generation job and returns its handle.
	Dispatch(ctx context.Context, payload GeneratePackPayload) (JobHandle, error)
}

// JobHandle identifies a dispatched job.
type JobHandle struct {
	JobID   uuid.UUID
	JobType string
}

// QueueDispatcher dispatches onto the database-backed job queue.
type QueueDispatcher struct {
	store *repository.Store
}

// NewQueueDispatcher creates a Dispatcher over the queue store.
func NewQueueDispatcher(store *repository.Store) *QueueDispatcher {
	return &QueueDispatcher{store: store}
}

// Dispatch enqueues a generate_pack job keyed by the payload's pack id.
func (d *QueueDispatcher) Dispatch(ctx context.Context, payload GeneratePackPayload) (JobHandle, error) {
	job, err := EnqueueJob(ctx, d.store, JobTypeGeneratePack, payload, WithPriority(PriorityHigh))
	if err != nil {
		return JobHandle{}, fmt.Errorf("dispatch generate_pack for pack %s: %w", payload.PackID, err)
	}
	return JobHandle{JobID: job.ID, JobType: job.JobType}, nil
}
