package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue       *Queue
	statsTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 2
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKER_COUNT", "2")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	// Periodic queue depth logging
	m.statsTicker = time.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.statsWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.statsTicker != nil {
		m.statsTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// statsWorker periodically logs queue depth so stalled processing is visible
// in the logs without an admin endpoint.
func (m *Manager) statsWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Stats worker stopping")
			return
		case <-m.statsTicker.C:
			ctx := context.Background()
			pending, err := m.queue.GetQueueSize(ctx)
			if err != nil {
				log.Errorf("[JobQueue Manager] Failed to read queue size: %v", err)
				continue
			}
			processing, err := m.queue.GetProcessingSize(ctx)
			if err != nil {
				log.Errorf("[JobQueue Manager] Failed to read processing size: %v", err)
				continue
			}
			if pending > 0 || processing > 0 {
				log.Infof("[JobQueue Manager] Queue depth: pending=%d processing=%d", pending, processing)
			}
		}
	}
}

// EnqueueStoryGeneration enqueues the generation pipeline for a story.
func EnqueueStoryGeneration(storyID uint, storyUUID, attemptID string, force bool) (*Job, error) {
	payload := StoryGenerationJobPayload{StoryID: storyID, StoryUUID: storyUUID, AttemptID: attemptID, Force: force}
	return GetManager().GetQueue().EnqueueJob(JobTypeStoryGeneration, payload.ToMap())
}

// EnqueueAudioGeneration enqueues narration for a ready story.
func EnqueueAudioGeneration(storyID uint, storyUUID, voiceID, attemptID string) (*Job, error) {
	payload := AudioGenerationJobPayload{StoryID: storyID, StoryUUID: storyUUID, VoiceID: voiceID, AttemptID: attemptID}
	return GetManager().GetQueue().EnqueueJob(JobTypeAudioGeneration, payload.ToMap())
}

// EnqueueCoverGeneration enqueues cover regeneration for a ready story.
func EnqueueCoverGeneration(storyID uint, storyUUID string) (*Job, error) {
	payload := CoverGenerationJobPayload{StoryID: storyID, StoryUUID: storyUUID}
	return GetManager().GetQueue().EnqueueJob(JobTypeCoverGeneration, payload.ToMap())
}
