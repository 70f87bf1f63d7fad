package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

var fixedNow = time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC)

func newTestEnforcer() *Enforcer {
	return NewEnforcer(schema.MustDefaultRegistry(), nil).WithClock(func() time.Time { return fixedNow })
}

func alice() identity.Identity {
	return identity.ForUser(identity.Principal{ID: "alice"})
}

func TestPrivilegedCallersPassThroughUnchanged(t *testing.T) {
	e := newTestEnforcer()
	registry := schema.MustDefaultRegistry()

	for _, id := range []identity.Identity{identity.ForAdmin(identity.Principal{ID: "root"}), identity.SystemIdentity()} {
		for _, table := range registry.Tables() {
			for _, action := range []query.Action{query.Select, query.Insert, query.Update, query.Delete} {
				req := query.Request{
					Table:   table,
					Action:  action,
					Filters: []query.Filter{{Column: "created_at", Operator: query.Lt, Value: "2025-01-01"}},
				}
				out, err := e.Enforce(req, id)
				require.NoError(t, err, "%s %s %s", id.Role, action, table)
				assert.Equal(t, req, out)
			}
		}
	}
}

func TestOwnerFilterIsAddedAlongsideCallerFilter(t *testing.T) {
	e := newTestEnforcer()
	req := query.Request{
		Table:   schema.TableBookings,
		Action:  query.Select,
		Filters: []query.Filter{{Column: "user_id", Operator: query.Eq, Value: "bob"}},
	}

	out, err := e.Enforce(req, alice())
	require.NoError(t, err)

	require.Len(t, out.Filters, 2)
	assert.Equal(t, query.Filter{Column: "user_id", Operator: query.Eq, Value: "bob"}, out.Filters[0])
	assert.Equal(t, query.Filter{Column: "user_id", Operator: query.Eq, Value: "alice"}, out.Filters[1])

	// the input is untouched
	assert.Len(t, req.Filters, 1)
}

func TestPublicTablesForceVisibilityFilters(t *testing.T) {
	e := newTestEnforcer()

	tests := []struct {
		table string
		want  []query.Filter
	}{
		{schema.TablePhotos, []query.Filter{{Column: "is_public", Operator: query.Eq, Value: 1}}},
		{schema.TableBookingTypes, []query.Filter{{Column: "is_active", Operator: query.Eq, Value: 1}}},
		{schema.TableAllowedCities, []query.Filter{{Column: "is_active", Operator: query.Eq, Value: 1}}},
		{schema.TableTags, nil},
		{schema.TableBlackoutDates, nil},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			for _, id := range []identity.Identity{identity.Anonymous(), alice()} {
				out, err := e.Enforce(query.Request{Table: tt.table, Action: query.Select}, id)
				require.NoError(t, err)
				assert.Equal(t, tt.want, out.Filters)

				_, err = e.Enforce(query.Request{Table: tt.table, Action: query.Delete,
					Filters: []query.Filter{{Column: "created_at", Operator: query.Lt, Value: "2000-01-01"}}}, id)
				assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)
			}
		})
	}
}

func TestOwnerScopedTablesRequireAuthentication(t *testing.T) {
	e := newTestEnforcer()

	for _, table := range []string{schema.TableUsers, schema.TableBookings, schema.TableAlbums, schema.TableFeedback} {
		t.Run(table, func(t *testing.T) {
			_, err := e.Enforce(query.Request{Table: table, Action: query.Select}, identity.Anonymous())
			assert.ErrorIs(t, err, dataerr.ErrUnauthorized)

			// user role without a principal is not authenticated either
			_, err = e.Enforce(query.Request{Table: table, Action: query.Select}, identity.Identity{Role: identity.User})
			assert.ErrorIs(t, err, dataerr.ErrUnauthorized)
		})
	}
}

func TestFailClosedForUnlistedTables(t *testing.T) {
	e := newTestEnforcer()

	_, err := e.Enforce(query.Request{Table: schema.TableAuditLog, Action: query.Select}, alice())
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)

	_, err = e.Enforce(query.Request{Table: schema.TableAuditLog, Action: query.Select}, identity.Anonymous())
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)

	_, err = e.Enforce(query.Request{Table: "payments", Action: query.Select}, alice())
	assert.ErrorIs(t, err, dataerr.ErrUnknownTable)

	_, err = e.Enforce(query.Request{Table: schema.TableTags, Action: query.Select}, identity.Identity{Role: "auditor"})
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)
}

func TestRPCOnlyTablesRejectEveryAction(t *testing.T) {
	e := newTestEnforcer()

	for _, action := range []query.Action{query.Select, query.Insert, query.Update, query.Delete} {
		_, err := e.Enforce(query.Request{Table: schema.TablePhotoLikes, Action: action,
			Filters: []query.Filter{{Column: "id", Operator: query.Eq, Value: 1}}}, alice())
		require.Error(t, err)
		assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)
		assert.Contains(t, err.Error(), "toggle_like")
	}
}

func TestBookingInsertRedirectsToProcedure(t *testing.T) {
	e := newTestEnforcer()

	_, err := e.Enforce(query.Request{
		Table:  schema.TableBookings,
		Action: query.Insert,
		Values: []query.Record{{"booking_date": "2025-03-02"}},
	}, alice())
	require.Error(t, err)
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "create_bookings")
}

func TestBookingUpdateOnlyAllowsCancellation(t *testing.T) {
	e := newTestEnforcer()
	byID := []query.Filter{{Column: "id", Operator: query.Eq, Value: "b1"}}

	out, err := e.Enforce(query.Request{
		Table:   schema.TableBookings,
		Action:  query.Update,
		Values:  []query.Record{{"status": schema.StatusCancelled}},
		Filters: byID,
	}, alice())
	require.NoError(t, err)
	assert.Equal(t, []query.Filter{
		{Column: "id", Operator: query.Eq, Value: "b1"},
		{Column: "user_id", Operator: query.Eq, Value: "alice"},
		{Column: "status", Operator: query.In, Value: schema.ActiveBookingStatuses},
		{Column: "booking_date", Operator: query.Gte, Value: "2025-02-20"},
	}, out.Filters)

	_, err = e.Enforce(query.Request{
		Table:   schema.TableBookings,
		Action:  query.Update,
		Values:  []query.Record{{"status": schema.StatusConfirmed}},
		Filters: byID,
	}, alice())
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)

	_, err = e.Enforce(query.Request{
		Table:   schema.TableBookings,
		Action:  query.Update,
		Values:  []query.Record{{"status": schema.StatusCancelled, "booking_date": "2025-04-01"}},
		Filters: byID,
	}, alice())
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)
}

func TestBookingDeleteOnlyPendingFutureRows(t *testing.T) {
	e := newTestEnforcer()

	out, err := e.Enforce(query.Request{
		Table:   schema.TableBookings,
		Action:  query.Delete,
		Filters: []query.Filter{{Column: "id", Operator: query.Eq, Value: "b1"}},
	}, alice())
	require.NoError(t, err)
	assert.Contains(t, out.Filters, query.Filter{Column: "status", Operator: query.Eq, Value: schema.StatusPending})
	assert.Contains(t, out.Filters, query.Filter{Column: "booking_date", Operator: query.Gte, Value: "2025-02-20"})
}

func TestFeedbackInsertOverwritesOwner(t *testing.T) {
	e := newTestEnforcer()

	req := query.Request{
		Table:  schema.TableFeedback,
		Action: query.Insert,
		Values: []query.Record{
			{"user_id": "mallory", "rating": 5, "content": "great"},
			{"rating": 4, "content": "nice"},
		},
	}
	out, err := e.Enforce(req, alice())
	require.NoError(t, err)

	for _, rec := range out.Values {
		assert.Equal(t, "alice", rec["user_id"])
	}
	assert.Equal(t, "mallory", req.Values[0]["user_id"])
	_, present := req.Values[1]["user_id"]
	assert.False(t, present)
}

func TestUserProfileUpdateWhitelist(t *testing.T) {
	e := newTestEnforcer()

	out, err := e.Enforce(query.Request{
		Table:   schema.TableUsers,
		Action:  query.Update,
		Values:  []query.Record{{"display_name": "Alice"}},
		Filters: []query.Filter{{Column: "id", Operator: query.Eq, Value: "alice"}},
	}, alice())
	require.NoError(t, err)
	assert.Contains(t, out.Filters, query.Filter{Column: "id", Operator: query.Eq, Value: "alice"})

	_, err = e.Enforce(query.Request{
		Table:   schema.TableUsers,
		Action:  query.Update,
		Values:  []query.Record{{"role": "admin"}},
		Filters: []query.Filter{{Column: "id", Operator: query.Eq, Value: "alice"}},
	}, alice())
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)

	_, err = e.Enforce(query.Request{Table: schema.TableUsers, Action: query.Delete,
		Filters: []query.Filter{{Column: "id", Operator: query.Eq, Value: "alice"}}}, alice())
	assert.ErrorIs(t, err, dataerr.ErrPermissionDenied)
}

func TestMalformedRequestIsValidationError(t *testing.T) {
	e := newTestEnforcer()

	_, err := e.Enforce(query.Request{Table: schema.TableTags, Action: "truncate"}, identity.SystemIdentity())
	assert.ErrorIs(t, err, dataerr.ErrValidation)
}
