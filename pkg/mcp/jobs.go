package mcp

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/models"
)

// JobStatus represents the current state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// CrawlRunner is the part of crawler.Crawler a job drives
type CrawlRunner interface {
	CrawlID() string
	Run(ctx context.Context) (*index.InvertedIndex, error)
	Summary() models.CrawlSummary
}

// Job is a point-in-time view of a background crawl
type Job struct {
	ID           string              `json:"id"` // The crawl ID
	Status       JobStatus           `json:"status"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  time.Time           `json:"completed_at,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Progress     models.CrawlSummary `json:"progress"`
}

type job struct {
	Job
	crawl  CrawlRunner
	cancel context.CancelFunc
}

// JobManager runs crawls in the background so tools can answer while the index fills
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*job
	wg   sync.WaitGroup
	log  *logrus.Entry
}

// NewJobManager creates a new job manager
func NewJobManager(log *logrus.Entry) *JobManager {
	return &JobManager{
		jobs: make(map[string]*job),
		log:  log.WithField("component", "mcp_jobs"),
	}
}

// Start runs crawl in a new goroutine under a context derived from parent.
// Starting a crawl whose ID is already active returns the existing job.
func (m *JobManager) Start(parent context.Context, crawl CrawlRunner) Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := crawl.CrawlID()
	if existing, ok := m.jobs[id]; ok && existing.Status.active() {
		return m.snapshotLocked(existing)
	}

	ctx, cancel := context.WithCancel(parent)
	j := &job{
		Job: Job{
			ID:        id,
			Status:    JobStatusPending,
			StartedAt: time.Now(),
		},
		crawl:  crawl,
		cancel: cancel,
	}
	m.jobs[id] = j

	m.wg.Add(1)
	go m.run(ctx, j)
	return m.snapshotLocked(j)
}

func (m *JobManager) run(ctx context.Context, j *job) {
	defer m.wg.Done()
	defer j.cancel()

	m.setStatus(j.ID, JobStatusRunning, "")
	jobLog := m.log.WithField("crawl_id", j.ID)
	jobLog.Info("Background crawl started")

	_, err := j.crawl.Run(ctx)
	switch {
	case err == nil:
		m.setStatus(j.ID, JobStatusCompleted, "")
		jobLog.Info("Background crawl completed")
	case errors.Is(err, context.Canceled):
		m.setStatus(j.ID, JobStatusCancelled, err.Error())
		jobLog.Warn("Background crawl cancelled")
	default:
		m.setStatus(j.ID, JobStatusFailed, err.Error())
		jobLog.Errorf("Background crawl failed: %v", err)
	}
}

func (m *JobManager) setStatus(id string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return
	}
	// A cancelled job keeps its status when Run returns
	if j.Status == JobStatusCancelled {
		return
	}
	j.Status = status
	if !status.active() {
		j.CompletedAt = time.Now()
	}
	if errorMsg != "" {
		j.ErrorMessage = errorMsg
	}
}

// Get returns a snapshot of the job with live progress
func (m *JobManager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return m.snapshotLocked(j), true
}

// List returns snapshots of all jobs, oldest first
func (m *JobManager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, m.snapshotLocked(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out
}

// Cancel cancels an active job. Returns false if the job is unknown or already finished.
func (m *JobManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || !j.Status.active() {
		return false
	}
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.Status.active() {
			j.cancel()
			j.Status = JobStatusCancelled
			j.CompletedAt = time.Now()
		}
	}
}

// Wait blocks until every started crawl has returned
func (m *JobManager) Wait() {
	m.wg.Wait()
}

func (m *JobManager) snapshotLocked(j *job) Job {
	snap := j.Job
	snap.Progress = j.crawl.Summary()
	return snap
}
