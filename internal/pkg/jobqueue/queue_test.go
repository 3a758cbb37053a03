package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 2},
		{"Negative workers", -1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.workerPool)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)

	assert.Equal(t, 3, DefaultMaxAttempts)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

// countingProcessor fails a configurable number of times before succeeding.
type countingProcessor struct {
	mu        sync.Mutex
	failures  int
	processed int
	exhausted int
}

func (p *countingProcessor) Process(ctx context.Context, job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
	if p.processed <= p.failures {
		return errors.New("simulated failure")
	}
	return nil
}

func (p *countingProcessor) OnExhausted(ctx context.Context, job *Job, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted++
	return nil
}

func (p *countingProcessor) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.exhausted
}

func TestEnqueueAndGetJob(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	queue := NewQueue(1)
	payload := StoryGenerationJobPayload{StoryID: 1, StoryUUID: "uuid-1"}

	job, err := queue.EnqueueJob(JobTypeStoryGeneration, payload.ToMap())
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)

	stored, err := queue.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, stored.ID)
	assert.Equal(t, JobTypeStoryGeneration, stored.Type)

	size, err := queue.GetQueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestEnqueueStoryGenerationCarriesAttemptAndForce(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	job, err := EnqueueStoryGeneration(5, "uuid-5", "attempt-5", true)
	require.NoError(t, err)

	stored, err := GetManager().GetQueue().GetJob(context.Background(), job.ID)
	require.NoError(t, err)

	payload, err := StoryGenerationJobPayloadFromMap(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(5), payload.StoryID)
	assert.Equal(t, "attempt-5", payload.AttemptID)
	assert.True(t, payload.Force, "a retry must bypass the terminal-status short-circuit")
}

func TestTransientFailureIsRedeliveredThenSucceeds(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	processor := &countingProcessor{failures: 1}
	queue := NewQueue(1)
	queue.Register(JobTypeStoryGeneration, processor)
	queue.Start()
	t.Cleanup(queue.Stop)

	payload := StoryGenerationJobPayload{StoryID: 2, StoryUUID: "uuid-2"}
	_, err := queue.EnqueueJob(JobTypeStoryGeneration, payload.ToMap())
	require.NoError(t, err)

	// First attempt fails, the replacement lands after ~1s backoff.
	require.Eventually(t, func() bool {
		processed, _ := processor.counts()
		return processed >= 2
	}, 10*time.Second, 100*time.Millisecond)

	processed, exhausted := processor.counts()
	assert.Equal(t, 2, processed)
	assert.Zero(t, exhausted)
}

func TestPermanentFailureRunsExhaustionHandlerOnce(t *testing.T) {
	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	processor := &countingProcessor{failures: DefaultMaxAttempts + 5}
	queue := NewQueue(1)
	queue.Register(JobTypeStoryGeneration, processor)
	queue.Start()
	t.Cleanup(queue.Stop)

	payload := StoryGenerationJobPayload{StoryID: 3, StoryUUID: "uuid-3"}
	_, err := queue.EnqueueJob(JobTypeStoryGeneration, payload.ToMap())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, exhausted := processor.counts()
		return exhausted == 1
	}, 20*time.Second, 100*time.Millisecond)

	// Executions are bounded: initial attempt plus redeliveries, no more.
	processed, exhausted := processor.counts()
	assert.Equal(t, DefaultMaxAttempts, processed)
	assert.Equal(t, 1, exhausted)

	// Nothing left on the queues once exhaustion has been acknowledged.
	require.Eventually(t, func() bool {
		pending, err := queue.GetQueueSize(context.Background())
		if err != nil {
			return false
		}
		processing, err := queue.GetProcessingSize(context.Background())
		if err != nil {
			return false
		}
		return pending == 0 && processing == 0
	}, 5*time.Second, 100*time.Millisecond)
}
