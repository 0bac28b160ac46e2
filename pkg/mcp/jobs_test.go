package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/models"
)

// fakeCrawl blocks in Run until release is closed or ctx is done
type fakeCrawl struct {
	id      string
	release chan struct{}
	err     error
	started chan struct{}
}

func newFakeCrawl(id string) *fakeCrawl {
	return &fakeCrawl{id: id, release: make(chan struct{}), started: make(chan struct{})}
}

func (f *fakeCrawl) CrawlID() string { return f.id }

func (f *fakeCrawl) Run(ctx context.Context) (*index.InvertedIndex, error) {
	close(f.started)
	select {
	case <-f.release:
		return index.New(), f.err
	case <-ctx.Done():
		return index.New(), ctx.Err()
	}
}

func (f *fakeCrawl) Summary() models.CrawlSummary {
	return models.CrawlSummary{CrawlID: f.id, Succeeded: 7}
}

func waitStatus(t *testing.T, jm *JobManager, id string, want JobStatus) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = jm.Get(id)
		return ok && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestJobManager_Completes(t *testing.T) {
	jm := NewJobManager(testLogger())
	crawl := newFakeCrawl("c1")

	job := jm.Start(context.Background(), crawl)
	assert.Equal(t, "c1", job.ID)
	assert.True(t, job.Status.active())
	assert.False(t, job.StartedAt.IsZero())

	<-crawl.started
	waitStatus(t, jm, "c1", JobStatusRunning)
	close(crawl.release)
	jm.Wait()

	done := waitStatus(t, jm, "c1", JobStatusCompleted)
	assert.False(t, done.CompletedAt.IsZero())
	assert.Empty(t, done.ErrorMessage)
	assert.Equal(t, int64(7), done.Progress.Succeeded)
}

func TestJobManager_Fails(t *testing.T) {
	jm := NewJobManager(testLogger())
	crawl := newFakeCrawl("c1")
	crawl.err = errors.New("listing page 2 (http://films.test/list?page=2): boom")
	close(crawl.release)

	jm.Start(context.Background(), crawl)
	jm.Wait()

	job := waitStatus(t, jm, "c1", JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "listing page 2")
}

func TestJobManager_StartSameIDWhileActive(t *testing.T) {
	jm := NewJobManager(testLogger())
	crawl := newFakeCrawl("c1")

	jm.Start(context.Background(), crawl)
	<-crawl.started
	again := jm.Start(context.Background(), newFakeCrawl("c1"))

	assert.Equal(t, "c1", again.ID)
	assert.Len(t, jm.List(), 1)
	close(crawl.release)
	jm.Wait()
}

func TestJobManager_Cancel(t *testing.T) {
	jm := NewJobManager(testLogger())
	crawl := newFakeCrawl("c1")
	jm.Start(context.Background(), crawl)
	<-crawl.started

	assert.True(t, jm.Cancel("c1"))
	jm.Wait()

	job := waitStatus(t, jm, "c1", JobStatusCancelled)
	assert.False(t, job.CompletedAt.IsZero())
	assert.False(t, jm.Cancel("c1"), "already finished")
	assert.False(t, jm.Cancel("unknown"))
}

func TestJobManager_ParentCancel(t *testing.T) {
	jm := NewJobManager(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	jm.Start(ctx, newFakeCrawl("c1"))

	cancel()
	jm.Wait()

	job := waitStatus(t, jm, "c1", JobStatusCancelled)
	assert.Contains(t, job.ErrorMessage, "context canceled")
}

func TestJobManager_CancelAllAndList(t *testing.T) {
	jm := NewJobManager(testLogger())
	first := newFakeCrawl("a")
	second := newFakeCrawl("b")
	jm.Start(context.Background(), first)
	<-first.started
	time.Sleep(time.Millisecond)
	jm.Start(context.Background(), second)
	<-second.started

	jm.CancelAll()
	jm.Wait()

	jobs := jm.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID, "oldest first")
	for _, j := range jobs {
		assert.Equal(t, JobStatusCancelled, j.Status)
	}
}

func TestJobManager_GetUnknown(t *testing.T) {
	jm := NewJobManager(testLogger())

	_, ok := jm.Get("missing")

	assert.False(t, ok)
}
