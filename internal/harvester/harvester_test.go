package harvester

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codecatalog/harvester/internal/archive"
	"github.com/codecatalog/harvester/internal/catalog"
	"github.com/codecatalog/harvester/internal/leetcode"
	"github.com/codecatalog/harvester/internal/notify"
)

type fakeClient struct {
	summaries []leetcode.QuestionSummary
	details   map[string]*leetcode.QuestionDetail

	detailCalls []string
}

func (f *fakeClient) FetchSummaries(_ context.Context, _ int) []leetcode.QuestionSummary {
	return f.summaries
}

func (f *fakeClient) FetchDetail(_ context.Context, slug string) *leetcode.QuestionDetail {
	f.detailCalls = append(f.detailCalls, slug)
	return f.details[slug]
}

type fakeStore struct {
	upserts []catalog.Problem
	failOn  map[string]error
}

func (f *fakeStore) UpsertProblem(_ context.Context, problem catalog.Problem, _ []catalog.Tag) error {
	if err, ok := f.failOn[problem.Slug]; ok {
		return err
	}
	f.upserts = append(f.upserts, problem)
	return nil
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

func summaryFixture(id int, slug string) leetcode.QuestionSummary {
	return leetcode.QuestionSummary{
		FrontendQuestionID: fmt.Sprintf("%d", id),
		Title:              slug,
		TitleSlug:          slug,
		Difficulty:         "Easy",
		AcRate:             50,
	}
}

func detailFixture(id int, slug string) *leetcode.QuestionDetail {
	return &leetcode.QuestionDetail{
		QuestionFrontendID: fmt.Sprintf("%d", id),
		Title:              slug,
		TitleSlug:          slug,
		Content:            "<p>body</p>",
		Difficulty:         "Easy",
		Stats:              `{"totalAccepted": 10, "totalSubmission": 20, "acRate": 50}`,
	}
}

func newTestHarvester(client Client, store Store, archiveStore archive.Store, notifier notify.Publisher) *Harvester {
	h := New(client, store, archiveStore, notifier, Config{}, zap.NewNop())
	h.sleep = func(time.Duration) {}
	h.randFloat = func() float64 { return 0.5 }
	return h
}

// TestRunEmptyListIsFatal verifies that a failed list fetch aborts the run
// before anything is persisted.
func TestRunEmptyListIsFatal(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	h := newTestHarvester(&fakeClient{}, store, nil, nil)

	result := h.Run(context.Background(), Options{Limit: 10})

	require.False(t, result.Success)
	require.Equal(t, "problem list fetch failed", result.Message)
	require.Zero(t, result.Total)
	require.Empty(t, store.upserts)
}

func TestRunSummaryMode(t *testing.T) {
	t.Parallel()

	client := &fakeClient{summaries: []leetcode.QuestionSummary{
		summaryFixture(1, "two-sum"),
		summaryFixture(2, "add-two-numbers"),
	}}
	store := &fakeStore{}
	h := newTestHarvester(client, store, nil, nil)

	result := h.Run(context.Background(), Options{Limit: 10})

	require.True(t, result.Success)
	require.Equal(t, 2, result.Total)
	require.Equal(t, 2, result.SuccessCount)
	require.Zero(t, result.FailCount)
	require.Empty(t, result.Failed)
	require.Len(t, store.upserts, 2)
	require.Empty(t, client.detailCalls, "summary mode must not fetch details")
}

// TestRunIsolatesItemFailures proves one bad item fails alone and the counts
// stay consistent.
func TestRunIsolatesItemFailures(t *testing.T) {
	t.Parallel()

	client := &fakeClient{summaries: []leetcode.QuestionSummary{
		summaryFixture(1, "two-sum"),
		{FrontendQuestionID: "LCP 07", Title: "bad", TitleSlug: "chuan-di-xin-xi", Difficulty: "Easy"},
		summaryFixture(3, "longest-substring"),
	}}
	store := &fakeStore{}
	h := newTestHarvester(client, store, nil, nil)

	result := h.Run(context.Background(), Options{Limit: 10})

	require.True(t, result.Success)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailCount)
	require.Equal(t, result.Total, result.SuccessCount+result.FailCount)
	require.Equal(t, []string{"chuan-di-xin-xi"}, result.Failed)
	require.Len(t, store.upserts, 2)
}

func TestRunPersistFailureCountsAsItemFailure(t *testing.T) {
	t.Parallel()

	client := &fakeClient{summaries: []leetcode.QuestionSummary{
		summaryFixture(1, "two-sum"),
		summaryFixture(2, "add-two-numbers"),
	}}
	store := &fakeStore{failOn: map[string]error{"add-two-numbers": errors.New("deadlock")}}
	h := newTestHarvester(client, store, nil, nil)

	result := h.Run(context.Background(), Options{Limit: 10})

	require.True(t, result.Success)
	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 1, result.FailCount)
	require.Equal(t, []string{"add-two-numbers"}, result.Failed)
}

// TestRunDetailMode covers enrichment: detail fields override summary fields
// and a missing detail fails only its item.
func TestRunDetailMode(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		summaries: []leetcode.QuestionSummary{
			summaryFixture(1, "two-sum"),
			summaryFixture(2, "gone-problem"),
		},
		details: map[string]*leetcode.QuestionDetail{
			"two-sum": detailFixture(1, "two-sum"),
		},
	}
	store := &fakeStore{}
	h := newTestHarvester(client, store, nil, nil)

	result := h.Run(context.Background(), Options{Limit: 10, FetchDetails: true})

	require.Equal(t, []string{"two-sum", "gone-problem"}, client.detailCalls)
	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, []string{"gone-problem"}, result.Failed)
	require.Len(t, store.upserts, 1)
	require.Equal(t, "<p>body</p>", store.upserts[0].Content)
	require.Equal(t, int64(20), store.upserts[0].SubmissionCount)
}

// TestRunThrottleSkipsLastItem checks the inter-item delay fires between
// items in detail mode and never after the final one.
func TestRunThrottleSkipsLastItem(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		summaries: []leetcode.QuestionSummary{
			summaryFixture(1, "a"),
			summaryFixture(2, "b"),
			summaryFixture(3, "c"),
		},
		details: map[string]*leetcode.QuestionDetail{
			"a": detailFixture(1, "a"),
			"b": detailFixture(2, "b"),
			"c": detailFixture(3, "c"),
		},
	}
	h := newTestHarvester(client, &fakeStore{}, nil, nil)

	var delays []time.Duration
	h.sleep = func(d time.Duration) { delays = append(delays, d) }
	h.randFloat = func() float64 { return 0.5 }

	h.Run(context.Background(), Options{
		Limit:        10,
		FetchDetails: true,
		DelayMin:     time.Second,
		DelayMax:     3 * time.Second,
	})

	require.Len(t, delays, 2, "three items yield two inter-item delays")
	for _, d := range delays {
		require.Equal(t, 2*time.Second, d)
	}
}

func TestRunNoThrottleInSummaryMode(t *testing.T) {
	t.Parallel()

	client := &fakeClient{summaries: []leetcode.QuestionSummary{
		summaryFixture(1, "a"),
		summaryFixture(2, "b"),
	}}
	h := newTestHarvester(client, &fakeStore{}, nil, nil)

	slept := false
	h.sleep = func(time.Duration) { slept = true }

	h.Run(context.Background(), Options{Limit: 10, DelayMin: time.Second, DelayMax: time.Second})

	require.False(t, slept)
}

// TestRunArchivesDetailPayloads checks best-effort archival: payloads land in
// the store in detail mode, and an archive outage never fails the item.
func TestRunArchivesDetailPayloads(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		summaries: []leetcode.QuestionSummary{summaryFixture(1, "two-sum")},
		details: map[string]*leetcode.QuestionDetail{
			"two-sum": detailFixture(1, "two-sum"),
		},
	}
	blobs := archive.NewMemory()
	h := newTestHarvester(client, &fakeStore{}, blobs, nil)

	result := h.Run(context.Background(), Options{Limit: 1, FetchDetails: true})

	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 1, blobs.Len())
	data, ok := blobs.Object("details/two-sum.json")
	require.True(t, ok)
	require.Contains(t, string(data), "two-sum")
}

func TestRunArchiveFailureDoesNotFailItem(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		summaries: []leetcode.QuestionSummary{summaryFixture(1, "two-sum")},
		details: map[string]*leetcode.QuestionDetail{
			"two-sum": detailFixture(1, "two-sum"),
		},
	}
	store := &fakeStore{}
	h := newTestHarvester(client, store, failingArchive{}, nil)

	result := h.Run(context.Background(), Options{Limit: 1, FetchDetails: true})

	require.Equal(t, 1, result.SuccessCount)
	require.Zero(t, result.FailCount)
	require.Len(t, store.upserts, 1)
}

// TestRunPublishesSummary checks the run summary reaches the publisher with
// the final counts and a run ID.
func TestRunPublishesSummary(t *testing.T) {
	t.Parallel()

	client := &fakeClient{summaries: []leetcode.QuestionSummary{
		summaryFixture(1, "two-sum"),
	}}
	pub := notify.NewMemory()
	h := newTestHarvester(client, &fakeStore{}, nil, pub)

	result := h.Run(context.Background(), Options{Limit: 1})

	require.True(t, result.Success)
	payloads := pub.Payloads()
	require.Len(t, payloads, 1)
	summary, ok := payloads[0].(RunSummary)
	require.True(t, ok)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, result, summary.Result)
}
