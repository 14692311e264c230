package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/llm"
	"github.com/onebitebitcoin/zentel/internal/memo"
	"github.com/onebitebitcoin/zentel/internal/storage/memory"
)

func TestSchedulerRunsJobs(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "words"})

	svc, _ := newTestService(store, &fakeModel{}, fetch.Router{}, nil)
	sched := NewScheduler(svc, SchedulerConfig{Workers: 2, QueueDepth: 8})
	defer sched.Stop()

	require.NoError(t, sched.Schedule(context.Background(), "m1", "u1"))

	require.Eventually(t, func() bool {
		m, err := store.GetMemo(context.Background(), "m1")
		return err == nil && m.AnalysisStatus == memo.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerQueueFull(t *testing.T) {
	store := memory.NewMemoStore()
	// Park the only worker on a slow job.
	store.PutMemo(&memo.Memo{ID: "slow", UserID: "u1", Type: memo.TypeText, Content: "words"})

	block := make(chan struct{})
	model := &blockingModel{fakeModel: &fakeModel{}, block: block}
	svc, _ := newTestService(store, model, fetch.Router{}, nil)
	sched := NewScheduler(svc, SchedulerConfig{Workers: 1, QueueDepth: 1})
	defer sched.Stop()
	defer close(block)

	ctx := context.Background()
	require.NoError(t, sched.Schedule(ctx, "slow", "u1"))
	// Wait until the worker picked the job up, freeing the queue slot.
	require.Eventually(t, func() bool { return sched.QueueDepth() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, sched.Schedule(ctx, "slow", "u1"))
	err := sched.Schedule(ctx, "slow", "u1")
	require.ErrorIs(t, err, ErrQueueFull)
}

type blockingModel struct {
	*fakeModel
	block chan struct{}
}

func (b *blockingModel) ExtractInsights(ctx context.Context, content string, interests []string) (llm.InsightResult, error) {
	<-b.block
	return b.fakeModel.ExtractInsights(ctx, content, interests)
}

func TestReanalyzeGuard(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{
		ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "words",
		AnalysisStatus: memo.StatusAnalyzing,
	})

	svc, _ := newTestService(store, &fakeModel{}, fetch.Router{}, nil)
	sched := NewScheduler(svc, SchedulerConfig{Workers: 1, QueueDepth: 4})
	defer sched.Stop()

	ctx := context.Background()
	err := sched.Reanalyze(ctx, "m1", "u1", false)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// Force overrides the guard, resets to pending, and requeues.
	require.NoError(t, sched.Reanalyze(ctx, "m1", "u1", true))
	require.Eventually(t, func() bool {
		m, _ := store.GetMemo(ctx, "m1")
		return m.AnalysisStatus == memo.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReanalyzeFinishedMemo(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{
		ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "words",
		AnalysisStatus: memo.StatusFailed, AnalysisError: "old failure",
	})

	svc, _ := newTestService(store, &fakeModel{}, fetch.Router{}, nil)
	sched := NewScheduler(svc, SchedulerConfig{Workers: 1, QueueDepth: 4})
	defer sched.Stop()

	ctx := context.Background()
	require.NoError(t, sched.Reanalyze(ctx, "m1", "u1", false))
	require.Eventually(t, func() bool {
		m, _ := store.GetMemo(ctx, "m1")
		return m.AnalysisStatus == memo.StatusCompleted && m.AnalysisError == ""
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReanalyzeMissingMemo(t *testing.T) {
	svc, _ := newTestService(memory.NewMemoStore(), &fakeModel{}, fetch.Router{}, nil)
	sched := NewScheduler(svc, SchedulerConfig{})
	defer sched.Stop()

	err := sched.Reanalyze(context.Background(), "missing", "u1", false)
	require.ErrorIs(t, err, memo.ErrNotFound)
}

func TestScheduleAfterStop(t *testing.T) {
	svc, _ := newTestService(memory.NewMemoStore(), &fakeModel{}, fetch.Router{}, nil)
	sched := NewScheduler(svc, SchedulerConfig{})
	sched.Stop()

	err := sched.Schedule(context.Background(), "m1", "u1")
	require.ErrorIs(t, err, ErrStopped)
}
