//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
)

func addTask(t *testing.T, h *harness, id string) {
	t.Helper()
	ok, err := h.store.Add(context.Background(), videoTask(id, time.Now()))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPollerSuccessAfterRunning(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1", status(model.StatusQueued), status(model.StatusRunning), succeeded("https://cdn.example/out.mp4"))

	require.True(t, h.poller.Track("j1"))
	h.poller.Wait()

	got, ok := h.store.Get("j1")
	require.True(t, ok)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "https://cdn.example/out.mp4", got.ResultURL)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", got.PreviewURL)
	require.NotNil(t, got.Usage)
	assert.Equal(t, "12", got.Usage.ConsumeCoins)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, h.sleeper.recorded())
	assert.Equal(t, []adapter.NoticeLevel{adapter.NoticeSuccess}, h.notifier.levels())
}

func TestPollerNetworkBackoffThenFailed(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1",
		failing(networkErr("reset")),
		failing(networkErr("reset")),
		failing(networkErr("reset")),
		failing(networkErr("reset")),
	)

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "network")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, h.sleeper.recorded())
	assert.Equal(t, 4, h.api.queryCount("j1"))
	assert.Equal(t, []adapter.NoticeLevel{adapter.NoticeError}, h.notifier.levels())
}

func TestPollerRetryCounterResetsOnSuccess(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1",
		failing(networkErr("timeout")),
		failing(networkErr("timeout")),
		status(model.StatusRunning),
		failing(networkErr("timeout")),
		failing(networkErr("timeout")),
		failing(networkErr("timeout")),
		succeeded("https://cdn.example/out.mp4"),
	)

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second,
		5 * time.Second,
		time.Second, 2 * time.Second, 4 * time.Second,
	}, h.sleeper.recorded())
}

func TestPollerTransientServerErrorIsRetried(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	busy := &domain.APIError{Kind: domain.ErrTransientServer, Code: "1011", Message: "queue full"}
	h.api.script("j1", failing(busy), succeeded("https://cdn.example/out.mp4"))

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, []time.Duration{time.Second}, h.sleeper.recorded())
}

func TestPollerAPIErrorFailsWithoutRetry(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1", failing(&domain.APIError{Kind: domain.ErrAuth, Status: 401, Message: "invalid or expired key"}))

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "invalid or expired key")
	assert.Empty(t, h.sleeper.recorded())
	assert.Equal(t, 1, h.api.queryCount("j1"))
}

func TestPollerUnknownStatusEndsLoop(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1", status(model.StatusRunning), status("CANCELLED"), status(model.StatusRunning))

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "CANCELLED")
	assert.Equal(t, 2, h.api.queryCount("j1"))
	assert.Equal(t, []time.Duration{5 * time.Second}, h.sleeper.recorded())
	assert.False(t, h.poller.IsTracking("j1"))
	assert.Equal(t, []adapter.NoticeLevel{adapter.NoticeError}, h.notifier.levels())
}

func TestPollerRemoteFailure(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1", queryReply{q: adapter.JobQuery{Status: model.StatusFailed, FailureReason: "content policy"}})

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "content policy", got.FailureReason)
	assert.Equal(t, 0, got.Progress)
}

func TestPollerFetchesMissingResult(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1",
		status(model.StatusSuccess),
		status(model.StatusSuccess),
		succeeded("https://cdn.example/late.mp4"),
	)

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, "https://cdn.example/late.mp4", got.ResultURL)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, h.sleeper.recorded())
}

func TestPollerGivesUpFetchingResult(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")
	h.api.script("j1", status(model.StatusSuccess))

	h.poller.Track("j1")
	h.poller.Wait()

	got, _ := h.store.Get("j1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "after 10 attempts")
	assert.Equal(t, 11, h.api.queryCount("j1"))
	assert.Len(t, h.sleeper.recorded(), 10)
}

func TestPollerStopsWhenTaskDeleted(t *testing.T) {
	h := newHarness(t, false)
	addTask(t, h, "j1")

	deleted := make(chan struct{})
	h.api.script("j1", status(model.StatusRunning))
	// delete the task during its first sleep
	sleeps := 0
	h.poller = newPollerWithSleep(t, h, func(ctx context.Context, d time.Duration) error {
		sleeps++
		if sleeps == 1 {
			assert.NoError(t, h.store.Delete(ctx, "j1"))
			close(deleted)
		}
		return nil
	})

	h.poller.Track("j1")
	h.poller.Wait()

	<-deleted
	assert.Equal(t, 1, h.api.queryCount("j1"))
	assert.False(t, h.store.Has("j1"))
}

func TestPollerIgnoresTerminalAndDuplicateTracking(t *testing.T) {
	h := newHarness(t, false)
	done := videoTask("done", time.Now()).Apply(model.Succeeded{ResultURL: "https://cdn.example/x.mp4"})
	_, err := h.store.Add(context.Background(), done)
	require.NoError(t, err)

	assert.False(t, h.poller.Track("done"))
	assert.False(t, h.poller.Track("missing"))
	assert.Equal(t, 0, h.api.queryCount("done"))

	addTask(t, h, "j1")
	block := make(chan struct{})
	h.poller = newPollerWithSleep(t, h, func(ctx context.Context, d time.Duration) error {
		<-block
		return nil
	})
	h.api.script("j1", status(model.StatusRunning), succeeded("https://cdn.example/y.mp4"))

	require.True(t, h.poller.Track("j1"))
	assert.False(t, h.poller.Track("j1"))
	assert.True(t, h.poller.IsTracking("j1"))
	close(block)
	h.poller.Wait()
	assert.False(t, h.poller.IsTracking("j1"))
}
