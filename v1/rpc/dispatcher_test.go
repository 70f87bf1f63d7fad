package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/observability"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

var testNow = time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC)

type answer func(stmt database.Statement) (*executor.Result, error)

type rule struct {
	prefix string
	answer answer
}

// fakeStore answers statements by SQL prefix, first match wins, and
// records everything it saw. Unmatched statements return an empty result.
type fakeStore struct {
	mu         sync.Mutex
	rules      []rule
	statements []database.Statement
}

func (s *fakeStore) on(prefix string, a answer) *fakeStore {
	s.rules = append(s.rules, rule{prefix: prefix, answer: a})
	return s
}

func (s *fakeStore) Run(_ context.Context, stmt database.Statement) (*executor.Result, error) {
	s.mu.Lock()
	s.statements = append(s.statements, stmt)
	rules := s.rules
	s.mu.Unlock()

	for _, r := range rules {
		if strings.HasPrefix(stmt.SQL, r.prefix) {
			return r.answer(stmt)
		}
	}
	return &executor.Result{}, nil
}

func (s *fakeStore) Dialect() database.Dialect {
	return database.MySQL
}

func (s *fakeStore) sqls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.statements))
	for i, stmt := range s.statements {
		out[i] = stmt.SQL
	}
	return out
}

func (s *fakeStore) find(prefix string) (database.Statement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range s.statements {
		if strings.HasPrefix(stmt.SQL, prefix) {
			return stmt, true
		}
	}
	return database.Statement{}, false
}

func (s *fakeStore) indexOf(prefix string) int {
	for i, sql := range s.sqls() {
		if strings.HasPrefix(sql, prefix) {
			return i
		}
	}
	return -1
}

func rows(recs ...query.Record) answer {
	return func(database.Statement) (*executor.Result, error) {
		return &executor.Result{Rows: recs}, nil
	}
}

func affected(n int64) answer {
	return func(database.Statement) (*executor.Result, error) {
		return &executor.Result{RowsAffected: n}, nil
	}
}

func total(n int64) answer {
	return rows(query.Record{"total": n})
}

func newTestDispatcher(store *fakeStore) *Dispatcher {
	ids := 0
	c := compiler.NewCompiler(schema.MustDefaultRegistry(), store, nil).
		WithClock(func() time.Time { return testNow }).
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("gen-%d", ids)
		})
	return NewDispatcher(c, Config{}, nil).WithClock(func() time.Time { return testNow })
}

var (
	alice = identity.ForUser(identity.Principal{ID: "u1"})
	admin = identity.ForAdmin(identity.Principal{ID: "a1"})
)

type recordingObserver struct {
	mu         sync.Mutex
	operations []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, ctx)
}

func TestCallRejectsUnknownProcedure(t *testing.T) {
	store := &fakeStore{}
	obs := &recordingObserver{}
	d := newTestDispatcher(store).WithObserver(obs)

	_, err := d.Call(context.Background(), admin, "drop_everything", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataerr.ErrUnknownProcedure)
	assert.True(t, dataerr.HasCode(err, dataerr.CodeUnknownProcedure))
	assert.Empty(t, store.sqls())

	require.Len(t, obs.operations, 1)
	assert.Equal(t, "rpc", obs.operations[0].Component)
	assert.Equal(t, "drop_everything", obs.operations[0].Operation)
	assert.Error(t, obs.operations[0].Error)
}

func TestProceduresListsClosedCatalog(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	assert.Equal(t, []string{
		ProcCancelBooking, ProcCreateBookings, ProcGetAdminStats, ProcGetMyWall, ProcGetPublicFeed,
		ProcGetUnavailableDates, ProcIncrementPhotoView, ProcRecountTagUsage, ProcRunMaintenance,
		ProcToggleLike, ProcToggleWallPin,
	}, d.Procedures())
}

func TestCallChecksCallerBeforeTouchingStore(t *testing.T) {
	tests := []struct {
		name      string
		caller    identity.Identity
		procedure string
		want      error
	}{
		{name: "anonymous like", caller: identity.Anonymous(), procedure: ProcToggleLike, want: dataerr.ErrUnauthorized},
		{name: "anonymous booking", caller: identity.Anonymous(), procedure: ProcCreateBookings, want: dataerr.ErrUnauthorized},
		{name: "anonymous wall", caller: identity.Anonymous(), procedure: ProcGetMyWall, want: dataerr.ErrUnauthorized},
		{name: "anonymous maintenance", caller: identity.Anonymous(), procedure: ProcRunMaintenance, want: dataerr.ErrUnauthorized},
		{name: "user stats", caller: alice, procedure: ProcGetAdminStats, want: dataerr.ErrPermissionDenied},
		{name: "user recount", caller: alice, procedure: ProcRecountTagUsage, want: dataerr.ErrPermissionDenied},
		{name: "user without principal", caller: identity.Identity{Role: identity.User}, procedure: ProcToggleWallPin, want: dataerr.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			_, err := newTestDispatcher(store).Call(context.Background(), tt.caller, tt.procedure, map[string]any{"photo_id": "ph1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.sqls())
		})
	}
}

// likeStore keeps one user's like of photo ph1 and the photo counter.
func likeStore(liked *bool, count *int64) *fakeStore {
	return (&fakeStore{}).
		on("SELECT `id` FROM `photos` WHERE `id` = @p1", rows(query.Record{"id": "ph1"})).
		on("SELECT `id` FROM `photo_likes`", func(database.Statement) (*executor.Result, error) {
			if *liked {
				return &executor.Result{Rows: []query.Record{{"id": int64(7)}}}, nil
			}
			return &executor.Result{}, nil
		}).
		on("INSERT INTO `photo_likes`", func(database.Statement) (*executor.Result, error) {
			*liked = true
			return &executor.Result{RowsAffected: 1, InsertID: 7}, nil
		}).
		on("DELETE FROM `photo_likes`", func(database.Statement) (*executor.Result, error) {
			*liked = false
			return &executor.Result{RowsAffected: 1}, nil
		}).
		on("UPDATE `photos` SET `like_count` = `like_count` + 1", func(database.Statement) (*executor.Result, error) {
			*count++
			return &executor.Result{RowsAffected: 1}, nil
		}).
		on("UPDATE `photos` SET `like_count` = GREATEST(`like_count` - 1, 0)", func(database.Statement) (*executor.Result, error) {
			if *count > 0 {
				*count--
			}
			return &executor.Result{RowsAffected: 1}, nil
		}).
		on("SELECT `like_count` FROM `photos`", func(database.Statement) (*executor.Result, error) {
			return &executor.Result{Rows: []query.Record{{"like_count": *count}}}, nil
		})
}

func TestToggleLikeTwiceRestoresState(t *testing.T) {
	liked, count := false, int64(0)
	store := likeStore(&liked, &count)
	d := newTestDispatcher(store)
	args := map[string]any{"photo_id": "ph1"}

	got, err := d.Call(context.Background(), alice, ProcToggleLike, args)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, got)

	insert, ok := store.find("INSERT INTO `photo_likes`")
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO `photo_likes` (`photo_id`, `user_id`, `created_at`) VALUES (@p1, @p2, @p3)", insert.SQL)
	assert.Equal(t, map[string]any{"p1": "ph1", "p2": "u1", "p3": "2025-02-20 10:00:00"}, insert.Params)

	got, err = d.Call(context.Background(), alice, ProcToggleLike, args)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 0}, got)

	del, ok := store.find("DELETE FROM `photo_likes`")
	require.True(t, ok)
	assert.Equal(t, "DELETE FROM `photo_likes` WHERE `id` IN (@p1)", del.SQL)
}

func TestToggleLikeCounterNeverNegative(t *testing.T) {
	liked, count := true, int64(0)
	store := likeStore(&liked, &count)

	got, err := newTestDispatcher(store).Call(context.Background(), alice, ProcToggleLike, map[string]any{"photo_id": "ph1"})
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 0}, got)
	assert.Equal(t, int64(0), count)
}

func TestToggleLikeDuplicateInsertDoesNotBumpCounter(t *testing.T) {
	store := (&fakeStore{}).
		on("SELECT `id` FROM `photos`", rows(query.Record{"id": "ph1"})).
		on("INSERT INTO `photo_likes`", func(database.Statement) (*executor.Result, error) {
			return nil, dataerr.Store(dataerr.CodeDuplicateKey, errors.New("duplicate entry"))
		}).
		on("SELECT `like_count` FROM `photos`", rows(query.Record{"like_count": int64(4)}))

	got, err := newTestDispatcher(store).Call(context.Background(), alice, ProcToggleLike, map[string]any{"photo_id": "ph1"})
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 4}, got)
	assert.Equal(t, -1, store.indexOf("UPDATE `photos`"))
}

func TestToggleWallPinRequiresExistingPhoto(t *testing.T) {
	store := &fakeStore{}

	_, err := newTestDispatcher(store).Call(context.Background(), alice, ProcToggleWallPin, map[string]any{"photo_id": "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataerr.ErrValidation)
	assert.Equal(t, []string{"SELECT `id` FROM `photos` WHERE `id` = @p1"}, store.sqls())
}

func TestIncrementPhotoViewCountsOncePerSession(t *testing.T) {
	seen := false
	views := int64(10)
	store := (&fakeStore{}).
		on("SELECT `id` FROM `photos`", rows(query.Record{"id": "ph1"})).
		on("SELECT `id` FROM `photo_views`", func(database.Statement) (*executor.Result, error) {
			if seen {
				return &executor.Result{Rows: []query.Record{{"id": int64(1)}}}, nil
			}
			return &executor.Result{}, nil
		}).
		on("INSERT INTO `photo_views`", func(database.Statement) (*executor.Result, error) {
			seen = true
			return &executor.Result{RowsAffected: 1, InsertID: 1}, nil
		}).
		on("UPDATE `photos` SET `view_count` = `view_count` + 1", func(database.Statement) (*executor.Result, error) {
			views++
			return &executor.Result{RowsAffected: 1}, nil
		}).
		on("SELECT `view_count` FROM `photos`", func(database.Statement) (*executor.Result, error) {
			return &executor.Result{Rows: []query.Record{{"view_count": views}}}, nil
		})
	d := newTestDispatcher(store)
	args := map[string]any{"photo_id": "ph1", "session_token": "s-1"}

	got, err := d.Call(context.Background(), identity.Anonymous(), ProcIncrementPhotoView, args)
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: true, ViewCount: 11}, got)

	got, err = d.Call(context.Background(), identity.Anonymous(), ProcIncrementPhotoView, args)
	require.NoError(t, err)
	assert.Equal(t, ViewResult{Counted: false, ViewCount: 11}, got)

	lookup, ok := store.find("SELECT `id` FROM `photo_views`")
	require.True(t, ok)
	assert.Equal(t, "SELECT `id` FROM `photo_views` WHERE `photo_id` = @p1 AND `session_id` = @p2 AND `user_id` IS NULL LIMIT 1", lookup.SQL)
}

func TestIncrementPhotoViewNeedsSessionForAnonymous(t *testing.T) {
	store := &fakeStore{}

	_, err := newTestDispatcher(store).Call(context.Background(), identity.Anonymous(), ProcIncrementPhotoView, map[string]any{"photo_id": "ph1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataerr.ErrValidation)
	assert.Empty(t, store.sqls())
}

func TestGetPublicFeedAnonymous(t *testing.T) {
	store := (&fakeStore{}).
		on("SELECT COUNT(*)", total(1)).
		on("SELECT p.", rows(query.Record{"id": "ph1", "tags": `["sea"]`, "is_liked": int64(0)}))

	got, err := newTestDispatcher(store).Call(context.Background(), identity.Anonymous(), ProcGetPublicFeed, map[string]any{"page_size": float64(500)})
	require.NoError(t, err)

	page := got.(FeedPage)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultFeedMaxPageSize, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, false, page.Items[0]["is_liked"])
	assert.Equal(t, []any{"sea"}, page.Items[0]["tags"])

	feed, ok := store.find("SELECT p.")
	require.True(t, ok)
	assert.Equal(t, "SELECT p.`id`, p.`album_id`, p.`url`, p.`thumbnail_url`, p.`title`, p.`tags`, p.`like_count`, p.`view_count`, p.`pin_count`, p.`created_at`, 0 AS `is_liked` FROM `photos` p WHERE `is_public` = @p1 ORDER BY p.`created_at` DESC LIMIT 50 OFFSET 0", feed.SQL)

	count, ok := store.find("SELECT COUNT(*)")
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(*) AS `total` FROM `photos` WHERE `is_public` = @p1", count.SQL)
}

func TestGetPublicFeedMarksLikesForCaller(t *testing.T) {
	store := (&fakeStore{}).
		on("SELECT COUNT(*)", total(2)).
		on("SELECT p.", rows(
			query.Record{"id": "ph1", "is_liked": int64(1)},
			query.Record{"id": "ph2", "is_liked": int64(0)},
		))

	got, err := newTestDispatcher(store).Call(context.Background(), alice, ProcGetPublicFeed, map[string]any{"tag": "sea", "page": 2, "page_size": 10})
	require.NoError(t, err)

	page := got.(FeedPage)
	assert.Equal(t, true, page.Items[0]["is_liked"])
	assert.Equal(t, false, page.Items[1]["is_liked"])

	feed, ok := store.find("SELECT p.")
	require.True(t, ok)
	assert.Contains(t, feed.SQL, "LEFT JOIN `photo_likes` l ON l.`photo_id` = p.`id` AND l.`user_id` = @p1")
	assert.Contains(t, feed.SQL, "WHERE `is_public` = @p2 AND JSON_CONTAINS(`tags`, @p3)")
	assert.True(t, strings.HasSuffix(feed.SQL, "LIMIT 10 OFFSET 10"))
	assert.Equal(t, "u1", feed.Params["p1"])
	assert.Equal(t, `["sea"]`, feed.Params["p3"])
}

func TestGetUnavailableDatesMergesSources(t *testing.T) {
	store := (&fakeStore{}).
		on("SELECT `date` FROM `blackout_dates`", rows(query.Record{"date": "2025-03-01"})).
		on("SELECT `booking_date` FROM `bookings`", rows(
			query.Record{"booking_date": "2025-03-01"},
			query.Record{"booking_date": "2025-02-25 00:00:00"},
		))

	got, err := newTestDispatcher(store).Call(context.Background(), identity.Anonymous(), ProcGetUnavailableDates, nil)
	require.NoError(t, err)
	assert.Equal(t, UnavailableDates{
		Blackout: []string{"2025-03-01"},
		Booked:   []string{"2025-02-25", "2025-03-01"},
		Dates:    []string{"2025-02-25", "2025-03-01"},
	}, got)

	blackout, ok := store.find("SELECT `date` FROM `blackout_dates`")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"p1": "2025-02-20", "p2": "2025-05-21"}, blackout.Params)
}

func TestGetUnavailableDatesRejectsInvertedRange(t *testing.T) {
	_, err := newTestDispatcher(&fakeStore{}).Call(context.Background(), identity.Anonymous(), ProcGetUnavailableDates,
		map[string]any{"from": "2025-03-10", "to": "2025-03-01"})
	assert.ErrorIs(t, err, dataerr.ErrValidation)
}

func TestGetMyWallListsCallerPins(t *testing.T) {
	store := (&fakeStore{}).
		on("SELECT p.", rows(query.Record{"id": "ph2", "tags": `["city"]`, "pinned_at": "2025-02-19 08:00:00"}))

	got, err := newTestDispatcher(store).Call(context.Background(), alice, ProcGetMyWall, nil)
	require.NoError(t, err)

	items := got.([]query.Record)
	require.Len(t, items, 1)
	assert.Equal(t, []any{"city"}, items[0]["tags"])

	wall, ok := store.find("SELECT p.")
	require.True(t, ok)
	assert.Equal(t, "SELECT p.`id`, p.`album_id`, p.`url`, p.`thumbnail_url`, p.`title`, p.`tags`, p.`like_count`, p.`view_count`, p.`pin_count`, p.`created_at`, w.`created_at` AS `pinned_at` FROM `wall_pins` w JOIN `photos` p ON p.`id` = w.`photo_id` WHERE w.`user_id` = @p1 ORDER BY w.`created_at` DESC", wall.SQL)
	assert.Equal(t, map[string]any{"p1": "u1"}, wall.Params)
}
