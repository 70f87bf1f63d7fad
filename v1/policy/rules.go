package policy

import (
	"time"

	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

const dateLayout = "2006-01-02"

// FilterFunc produces the filters a grant forces onto a request.
type FilterFunc func(id identity.Identity, now time.Time) []query.Filter

// Grant permits one action and describes how the request is rewritten.
type Grant struct {
	// Filters are AND-combined with the caller's filters.
	Filters []FilterFunc

	// OwnerColumn is overwritten with the caller id on every inserted row.
	OwnerColumn string

	// AllowedFields, when set, is the only set of payload columns a write may carry.
	AllowedFields []string

	// AllowedValues restricts the values of individual payload columns.
	AllowedValues map[string][]any
}

// Rule is the access policy of one table for one role.
type Rule struct {
	// RequireAuth rejects callers without an authenticated principal.
	RequireAuth bool

	// Procedures, when set, marks the table as writable only through these
	// RPC procedures. Every direct action is rejected.
	Procedures []string

	// Actions lists the permitted actions. Anything missing is denied.
	Actions map[query.Action]Grant

	// Redirects names the procedure to use instead of a denied action.
	Redirects map[query.Action]string
}

type ruleKey struct {
	table string
	role  identity.Role
}

// RuleTable maps (table, role) to a Rule. Pairs without an entry are denied.
type RuleTable map[ruleKey]Rule

// Set registers rule for table under every given role.
func (t RuleTable) Set(table string, rule Rule, roles ...identity.Role) {
	for _, role := range roles {
		t[ruleKey{table: table, role: role}] = rule
	}
}

// Lookup returns the rule of table for role.
func (t RuleTable) Lookup(table string, role identity.Role) (Rule, bool) {
	r, ok := t[ruleKey{table: table, role: role}]
	return r, ok
}

// Fixed forces the same filters onto every request.
func Fixed(filters ...query.Filter) FilterFunc {
	return func(identity.Identity, time.Time) []query.Filter {
		return filters
	}
}

// OwnedBy restricts rows to those whose column equals the caller id.
func OwnedBy(column string) FilterFunc {
	return func(id identity.Identity, _ time.Time) []query.Filter {
		return []query.Filter{{Column: column, Operator: query.Eq, Value: id.UserID()}}
	}
}

// NotBeforeToday restricts a date column to today or later.
func NotBeforeToday(column string) FilterFunc {
	return func(_ identity.Identity, now time.Time) []query.Filter {
		return []query.Filter{{Column: column, Operator: query.Gte, Value: now.Format(dateLayout)}}
	}
}

var (
	activeOnly = Fixed(query.Filter{Column: "is_active", Operator: query.Eq, Value: 1})
	publicOnly = Fixed(query.Filter{Column: "is_public", Operator: query.Eq, Value: 1})
)

// DefaultRules returns the row-level rules of the photo booking store.
// Admin and system callers never consult the table.
func DefaultRules() RuleTable {
	t := RuleTable{}
	anyone := []identity.Role{identity.Guest, identity.User}

	readOnly := func(filters ...FilterFunc) Rule {
		return Rule{Actions: map[query.Action]Grant{query.Select: {Filters: filters}}}
	}

	t.Set(schema.TableBookingTypes, readOnly(activeOnly), anyone...)
	t.Set(schema.TableAllowedCities, readOnly(activeOnly), anyone...)
	t.Set(schema.TableBlackoutDates, readOnly(), anyone...)
	t.Set(schema.TableTags, readOnly(), anyone...)
	t.Set(schema.TablePhotos, readOnly(publicOnly), anyone...)

	authOnly := Rule{RequireAuth: true}
	for _, table := range []string{schema.TableUsers, schema.TableBookings, schema.TableAlbums, schema.TableFeedback} {
		t.Set(table, authOnly, identity.Guest)
	}

	t.Set(schema.TableUsers, Rule{
		RequireAuth: true,
		Actions: map[query.Action]Grant{
			query.Select: {Filters: []FilterFunc{OwnedBy("id")}},
			query.Update: {
				Filters:       []FilterFunc{OwnedBy("id")},
				AllowedFields: []string{"display_name", "avatar_url", "phone"},
			},
		},
	}, identity.User)

	t.Set(schema.TableBookings, Rule{
		RequireAuth: true,
		Actions: map[query.Action]Grant{
			query.Select: {Filters: []FilterFunc{OwnedBy("user_id")}},
			query.Update: {
				Filters: []FilterFunc{
					OwnedBy("user_id"),
					Fixed(query.Filter{Column: "status", Operator: query.In, Value: schema.ActiveBookingStatuses}),
					NotBeforeToday("booking_date"),
				},
				AllowedFields: []string{"status"},
				AllowedValues: map[string][]any{"status": {schema.StatusCancelled}},
			},
			query.Delete: {
				Filters: []FilterFunc{
					OwnedBy("user_id"),
					Fixed(query.Filter{Column: "status", Operator: query.Eq, Value: schema.StatusPending}),
					NotBeforeToday("booking_date"),
				},
			},
		},
		Redirects: map[query.Action]string{query.Insert: "create_bookings"},
	}, identity.User)

	t.Set(schema.TableAlbums, Rule{
		RequireAuth: true,
		Actions: map[query.Action]Grant{
			query.Select: {Filters: []FilterFunc{OwnedBy("user_id")}},
		},
	}, identity.User)

	t.Set(schema.TableFeedback, Rule{
		RequireAuth: true,
		Actions: map[query.Action]Grant{
			query.Select: {Filters: []FilterFunc{OwnedBy("user_id")}},
			query.Insert: {OwnerColumn: "user_id"},
		},
	}, identity.User)

	t.Set(schema.TablePhotoLikes, Rule{Procedures: []string{"toggle_like"}}, anyone...)
	t.Set(schema.TablePhotoViews, Rule{Procedures: []string{"increment_photo_view"}}, anyone...)
	t.Set(schema.TableWallPins, Rule{Procedures: []string{"toggle_wall_pin"}}, anyone...)

	return t
}
