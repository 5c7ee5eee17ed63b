package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nba_stats/ingestion/internal/client"
	"nba_stats/ingestion/internal/models"
	"nba_stats/ingestion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gameA = scheduledGame{id: "0022300001", date: "2023-10-24", home: 1, away: 2}
	gameB = scheduledGame{id: "0022300002", date: "2023-10-24", home: 3, away: 4}
	gameC = scheduledGame{id: "0022300003", date: "2023-10-25", home: 1, away: 3}
)

func setupStore(t *testing.T) (*repository.BoltStore, context.Context) {
	t.Helper()
	ctx := context.Background()

	store, err := repository.OpenBolt(filepath.Join(t.TempDir(), "nba.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.EnsureSchema(ctx))
	return store, ctx
}

func newTestRunner(source Source, store repository.Store, opts Options) *Runner {
	if opts.SeasonTypes == nil {
		opts.SeasonTypes = []string{models.SeasonTypeRegular}
	}
	r := New(source, store, opts)
	r.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return r
}

func markIngested(t *testing.T, store repository.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.MarkGameIngested(context.Background(), models.IngestedGame{GameID: id, SeasonID: "22023"}))
	}
}

func rowCounts(t *testing.T, store repository.Store) map[string]int64 {
	t.Helper()
	counts, err := store.TableCounts(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Table] = c.Rows
	}
	return out
}

// countingIngestor records which games reach the ingestor
type countingIngestor struct {
	mu    sync.Mutex
	inner Ingestor
	games []string
}

func (c *countingIngestor) IngestGame(ctx context.Context, ref models.GameRef, runID string) IngestResult {
	c.mu.Lock()
	c.games = append(c.games, ref.GameID)
	c.mu.Unlock()
	return c.inner.IngestGame(ctx, ref, runID)
}

func TestRunner_IngestsOnlyMissingGame(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameB, gameC)
	markIngested(t, store, gameA.id, gameB.id)

	resolver := NewResolver(source, store, []string{models.SeasonTypeRegular}, models.TableIngestedGames)
	missing, err := resolver.MissingGames(ctx, "2023-24")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, gameC.id, missing[0].GameID)

	summary, err := newTestRunner(source, store, Options{SkipCompletedKinds: true}).Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.PartiallyFailed)
	assert.Equal(t, 0, summary.Failed)
	assert.NotEmpty(t, summary.RunID)

	assert.Zero(t, source.gameCallCount(gameA.id))
	assert.Zero(t, source.gameCallCount(gameB.id))

	ids, err := store.ExistingGameIDs(ctx, models.TableIngestedGames)
	require.NoError(t, err)
	assert.Contains(t, ids, gameC.id)
}

func TestRunner_IsIdempotent(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameB)
	runner := newTestRunner(source, store, Options{SkipCompletedKinds: true})

	first, err := runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)
	afterFirst := rowCounts(t, store)
	gameFetches := source.gameCallCount(gameA.id)

	second, err := runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Attempted)
	assert.NotEqual(t, first.RunID, second.RunID)

	afterSecond := rowCounts(t, store)
	for _, kind := range models.Kinds {
		assert.Equal(t, afterFirst[kind.Table()], afterSecond[kind.Table()], kind)
		assert.Positive(t, afterSecond[kind.Table()], kind)
	}
	assert.Equal(t, gameFetches, source.gameCallCount(gameA.id), "no per-game fetch on the second run")

	// Both runs are in the ledger
	assert.Equal(t, int64(2), afterSecond[models.TableIngestionRuns])
	runs, err := store.RecentRuns(ctx, "2023-24", 10)
	require.NoError(t, err)
	for _, r := range runs {
		assert.Equal(t, models.StatusCompleted, r.Status)
	}
}

func TestRunner_PartialFailureIsolation(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)
	source.failKind(gameA.id, models.KindHustleStats, errUpstream)
	runner := newTestRunner(source, store, Options{SkipCompletedKinds: true})

	summary, err := runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, RunSummary{RunID: summary.RunID, Season: "2023-24", Attempted: 1, PartiallyFailed: 1, Duration: summary.Duration}, summary)
	assert.False(t, summary.Clean())

	counts := rowCounts(t, store)
	assert.Equal(t, int64(3), counts[models.KindPlayerGameStats.Table()])
	assert.Equal(t, int64(3), counts[models.KindPlayByPlay.Table()])
	assert.Equal(t, int64(3), counts[models.KindPlayerMatchups.Table()])
	assert.Equal(t, int64(2), counts[models.KindGameRotations.Table()])
	assert.Equal(t, int64(0), counts[models.KindHustleStats.Table()])
	assert.Equal(t, int64(0), counts[models.TableIngestedGames], "partial game is not marked complete")

	// The next run retries the game and only fetches what is still absent
	source.clearFailures()
	before := source.callCount("playbyplayv3")

	summary, err = runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, before, source.callCount("playbyplayv3"))
	assert.Equal(t, 2, source.callCount("hustlestatsboxscore"))

	counts = rowCounts(t, store)
	assert.Equal(t, int64(2), counts[models.KindHustleStats.Table()])
	assert.Equal(t, int64(1), counts[models.TableIngestedGames])
}

func TestRunner_BodylessBoxScoreKeepsGameMissing(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)
	source.dropBody(models.KindPlayerGameStats, true)
	runner := newTestRunner(source, store, Options{SkipCompletedKinds: true})

	summary, err := runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Zero(t, summary.Succeeded)
	assert.Equal(t, 1, summary.PartiallyFailed)

	counts := rowCounts(t, store)
	assert.Zero(t, counts[models.TableIngestedGames])
	assert.Zero(t, counts[models.KindPlayerGameStats.Table()])

	done, err := store.CompletedKinds(ctx, gameA.id)
	require.NoError(t, err)
	assert.NotContains(t, done, models.KindPlayerGameStats)

	missing, err := NewResolver(source, store, []string{models.SeasonTypeRegular}, models.TableIngestedGames).MissingGames(ctx, "2023-24")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, gameA.id, missing[0].GameID)

	// Once the feed recovers the same game completes
	source.dropBody(models.KindPlayerGameStats, false)
	summary, err = runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, int64(3), rowCounts(t, store)[models.KindPlayerGameStats.Table()])
}

func TestRunner_FatalScheduleFailure(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameB)
	source.scheduleErr = errUpstream

	counter := &countingIngestor{inner: NewGameIngestor(source, store, true)}
	resolver := NewResolver(source, store, []string{models.SeasonTypeRegular, models.SeasonTypePlayoffs}, models.TableIngestedGames)
	runner := NewRunner(resolver, counter, store, Options{})

	summary, err := runner.Run(ctx, "2023-24")
	require.Error(t, err)

	var serr *ScheduleFetchError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "2023-24", serr.Season)
	assert.Equal(t, models.SeasonTypeRegular, serr.SeasonType)
	var ferr *client.FetchError
	assert.True(t, errors.As(err, &ferr))

	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Empty(t, counter.games, "ingestor must not run")
	assert.Zero(t, source.gameCallCount(gameA.id))

	runs, err := store.RecentRuns(ctx, "2023-24", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.StatusAborted, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "schedule")
}

func TestRunner_StoreFailureIsFatal(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)
	require.NoError(t, store.Close())

	_, err := newTestRunner(source, store, Options{}).Run(ctx, "2023-24")
	require.Error(t, err)
	var perr *repository.PersistenceError
	assert.True(t, errors.As(err, &perr))
	assert.Zero(t, source.gameCallCount(gameA.id))
}

func TestRunner_PausesBetweenGames(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameB, gameC)
	runner := newTestRunner(source, store, Options{GamePause: 1500 * time.Millisecond})

	var pauses []time.Duration
	runner.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	summary, err := runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, pauses)
}

func TestRunner_CancelStopsBetweenGames(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameB, gameC)
	runner := newTestRunner(source, store, Options{GamePause: time.Second})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	summary, err := runner.Run(ctx, "2023-24")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)

	ids, err := store.ExistingGameIDs(context.Background(), models.TableIngestedGames)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{gameA.id: {}}, ids, "the finished game stays written")

	runs, err := store.RecentRuns(context.Background(), "2023-24", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.StatusAborted, runs[0].Status)
}

func TestRunner_InvalidSeason(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)

	summary, err := newTestRunner(source, store, Options{}).Run(ctx, "2023")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
	assert.Zero(t, source.callCount("leaguegamefinder"))
}

func TestRunner_LegacyCompletenessTable(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameB)
	source.failKind(gameA.id, models.KindHustleStats, errUpstream)
	runner := newTestRunner(source, store, Options{CompletenessTable: models.KindPlayerGameStats.Table(), SkipCompletedKinds: true})

	summary, err := runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PartiallyFailed)
	assert.Equal(t, 1, summary.Succeeded)

	// Box scores landed for both games, so the legacy check sees nothing missing
	summary, err = runner.Run(ctx, "2023-24")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
}

func TestResolver_DedupCorrectness(t *testing.T) {
	schedule := []scheduledGame{
		{id: "0022300005", date: "2023-10-27", home: 1, away: 2},
		{id: "0022300001", date: "2023-10-24", home: 3, away: 4},
		{id: "0022300003", date: "2023-10-25", home: 5, away: 6},
		{id: "0022300002", date: "2023-10-24", home: 7, away: 8},
		{id: "0022300004", date: "2023-10-26", home: 9, away: 10},
	}
	ordered := []string{"0022300001", "0022300002", "0022300003", "0022300004", "0022300005"}

	for mask := 0; mask < 1<<len(ordered); mask++ {
		store, ctx := setupStore(t)
		source := newFakeSource(schedule...)

		var want []string
		for i, id := range ordered {
			if mask&(1<<i) != 0 {
				markIngested(t, store, id)
			} else {
				want = append(want, id)
			}
		}

		missing, err := NewResolver(source, store, nil, "").MissingGames(ctx, "2023-24")
		require.NoError(t, err)

		got := make([]string, len(missing))
		for i, ref := range missing {
			got[i] = ref.GameID
		}
		if want == nil {
			assert.Empty(t, got, "mask %b", mask)
		} else {
			assert.Equal(t, want, got, "mask %b", mask)
		}
	}
}

func TestResolver_EmptySchedule(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource()

	missing, err := NewResolver(source, store, nil, "").MissingGames(ctx, "2023-24")
	require.NoError(t, err)
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}

func TestResolver_MergesSeasonTypes(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameB)
	source.schedule[models.SeasonTypePlayoffs] = []scheduledGame{{id: "0042300101", date: "2024-04-20", home: 1, away: 2}}
	source.schedule[models.SeasonTypePlayIn] = []scheduledGame{{id: "0052300101", date: "2024-04-16", home: 5, away: 6}}

	resolver := NewResolver(source, store, []string{models.SeasonTypeRegular, models.SeasonTypePlayIn, models.SeasonTypePlayoffs}, models.TableIngestedGames)
	schedule, err := resolver.Schedule(ctx, "2023-24")
	require.NoError(t, err)
	require.Len(t, schedule, 3)
	assert.Equal(t, gameB.id, schedule[0].GameID)
	assert.Equal(t, "0052300101", schedule[1].GameID)
	assert.Equal(t, models.SeasonTypePlayIn, schedule[1].SeasonType)
	assert.Equal(t, "0042300101", schedule[2].GameID)
	assert.Equal(t, 3, source.callCount("leaguegamefinder"))
}

func TestGameIngestor_AllKindsFail(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)
	for _, kind := range models.Kinds {
		source.failKind(gameA.id, kind, errUpstream)
	}

	ref := models.GameRef{GameID: gameA.id, SeasonID: "22023"}
	result := NewGameIngestor(source, store, true).IngestGame(ctx, ref, "run-1")

	assert.Equal(t, OutcomeFailed, result.Outcome())
	assert.Len(t, result.Failed, len(models.Kinds))
	assert.False(t, result.Marked)

	done, err := store.CompletedKinds(ctx, gameA.id)
	require.NoError(t, err)
	assert.Empty(t, done)
	assert.Equal(t, int64(len(models.Kinds)), rowCounts(t, store)[models.TableGameKindStatus])
}

func TestGameIngestor_EmptyPayloadIsSuccess(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)
	source.emptyHustle = true

	result := NewGameIngestor(source, store, true).IngestGame(ctx, models.GameRef{GameID: gameA.id}, "run-1")

	assert.Equal(t, OutcomeSuccess, result.Outcome())
	assert.Equal(t, 0, result.Succeeded[models.KindHustleStats])
	assert.True(t, result.Marked)
}

func TestGameIngestor_BodylessPayloadFails(t *testing.T) {
	for _, kind := range []models.Kind{models.KindPlayerGameStats, models.KindPlayByPlay, models.KindPlayerMatchups} {
		t.Run(string(kind), func(t *testing.T) {
			store, ctx := setupStore(t)
			source := newFakeSource(gameA)
			source.dropBody(kind, true)

			result := NewGameIngestor(source, store, true).IngestGame(ctx, models.GameRef{GameID: gameA.id}, "run-1")

			assert.Equal(t, OutcomePartial, result.Outcome())
			assert.False(t, result.Marked)
			require.Contains(t, result.Failed, kind)

			var perr *PayloadError
			require.True(t, errors.As(result.Failed[kind], &perr))
			assert.Equal(t, kind, perr.Kind)
			assert.ErrorIs(t, result.Failed[kind], models.ErrMissingBody)
			assert.Zero(t, rowCounts(t, store)[kind.Table()])
		})
	}
}

// silentPlays serves a play-by-play game block with no actions
type silentPlays struct {
	*fakeSource
}

func (s silentPlays) FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayV3Input, error) {
	return &models.PlayByPlayV3Input{Game: &models.PlayByPlayV3Game{GameID: gameID}}, nil
}

func TestGameIngestor_RequiredKindWithNoRowsFails(t *testing.T) {
	store, ctx := setupStore(t)
	source := silentPlays{newFakeSource(gameA)}

	result := NewGameIngestor(source, store, true).IngestGame(ctx, models.GameRef{GameID: gameA.id}, "run-1")

	assert.Equal(t, OutcomePartial, result.Outcome())
	assert.False(t, result.Marked)
	assert.ErrorIs(t, result.Failed[models.KindPlayByPlay], ErrNoRows)
	assert.Contains(t, result.Succeeded, models.KindPlayerGameStats)

	done, err := store.CompletedKinds(ctx, gameA.id)
	require.NoError(t, err)
	assert.NotContains(t, done, models.KindPlayByPlay)
}

func TestGameIngestor_RefetchesWhenSkipDisabled(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)
	ingestor := NewGameIngestor(source, store, false)
	ref := models.GameRef{GameID: gameA.id}

	ingestor.IngestGame(ctx, ref, "run-1")
	result := ingestor.IngestGame(ctx, ref, "run-2")

	assert.Empty(t, result.Skipped)
	assert.Len(t, result.Succeeded, len(models.Kinds))
	assert.Equal(t, 2, source.callCount("hustlestatsboxscore"))
	assert.Equal(t, int64(2), rowCounts(t, store)[models.KindHustleStats.Table()], "rows replaced, not duplicated")
}

func TestGameIngestor_UpsertsGameRow(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA)

	ref := models.GameRef{GameID: gameA.id, Matchup: "HOM vs. AWY", HomeTeamID: 1, AwayTeamID: 2}
	NewGameIngestor(source, store, true).IngestGame(ctx, ref, "run-1")

	assert.Equal(t, int64(1), rowCounts(t, store)[models.TableGames])
}

func TestGameIngestor_RecordsTeamsAndPlayers(t *testing.T) {
	store, ctx := setupStore(t)
	source := newFakeSource(gameA, gameC)
	ingestor := NewGameIngestor(source, store, true)

	ingestor.IngestGame(ctx, models.GameRef{GameID: gameA.id, HomeTeamID: 1, AwayTeamID: 2, HomeTeamAbbr: "HOM", AwayTeamAbbr: "AWY"}, "run-1")
	counts := rowCounts(t, store)
	assert.Equal(t, int64(2), counts[models.TableTeams])
	assert.Equal(t, int64(3), counts[models.TablePlayers])

	// Team 3 is only known from its schedule row until its box score arrives
	source.dropBody(models.KindPlayerGameStats, true)
	ingestor.IngestGame(ctx, models.GameRef{GameID: gameC.id, HomeTeamID: 1, AwayTeamID: 3, AwayTeamAbbr: "THR"}, "run-1")
	counts = rowCounts(t, store)
	assert.Equal(t, int64(3), counts[models.TableTeams])
	assert.Equal(t, int64(3), counts[models.TablePlayers])
}

func TestIngestResult_Outcome(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		result IngestResult
		want   Outcome
	}{
		{
			name:   "all written and marked",
			result: IngestResult{Succeeded: map[models.Kind]int{models.KindPlayByPlay: 10}, Marked: true},
			want:   OutcomeSuccess,
		},
		{
			name:   "everything already stored",
			result: IngestResult{Skipped: models.Kinds, Marked: true},
			want:   OutcomeSuccess,
		},
		{
			name:   "marker write failed",
			result: IngestResult{Succeeded: map[models.Kind]int{models.KindPlayByPlay: 10}, MarkerErr: boom},
			want:   OutcomePartial,
		},
		{
			name: "one kind failed",
			result: IngestResult{
				Succeeded: map[models.Kind]int{models.KindPlayByPlay: 10},
				Failed:    map[models.Kind]error{models.KindHustleStats: boom},
			},
			want: OutcomePartial,
		},
		{
			name: "failed after earlier partial run",
			result: IngestResult{
				Skipped: []models.Kind{models.KindPlayByPlay},
				Failed:  map[models.Kind]error{models.KindHustleStats: boom},
			},
			want: OutcomePartial,
		},
		{
			name:   "every kind failed",
			result: IngestResult{Failed: map[models.Kind]error{models.KindHustleStats: boom, models.KindPlayByPlay: boom}},
			want:   OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Outcome())
		})
	}
}

func TestScheduleFetchError(t *testing.T) {
	err := &ScheduleFetchError{Season: "2023-24", SeasonType: "Playoffs", Err: errUpstream}
	assert.Equal(t, "failed to fetch Playoffs schedule for season 2023-24: upstream unavailable", err.Error())
	assert.ErrorIs(t, err, errUpstream)
}
