package policy

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

// Enforcer rewrites structured requests so that they only reach the rows
// and columns the caller's role may touch.
type Enforcer struct {
	registry *schema.Registry
	rules    RuleTable
	now      func() time.Time
}

// NewEnforcer returns an enforcer over rules. A nil rules table means
// DefaultRules.
func NewEnforcer(registry *schema.Registry, rules RuleTable) *Enforcer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Enforcer{registry: registry, rules: rules, now: time.Now}
}

// WithClock replaces the clock used for date-relative filters.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	e.now = now
	return e
}

// Enforce returns a rewritten copy of req. req itself is never modified.
//
// Privileged callers get an unchanged copy. For everybody else the rule of
// (table, role) is applied in full or the request is rejected; a table
// without a rule is always rejected.
func (e *Enforcer) Enforce(req query.Request, id identity.Identity) (query.Request, error) {
	out := req.Clone()

	if err := out.Validate(); err != nil {
		return query.Request{}, dataerr.Validation("%v", err)
	}
	if _, err := e.registry.Metadata(out.Table); err != nil {
		return query.Request{}, err
	}

	if id.IsPrivileged() {
		return out, nil
	}

	rule, ok := e.rules.Lookup(out.Table, id.Role)
	if !ok {
		return query.Request{}, dataerr.PermissionDenied("role %s has no access to table %s", id.Role, out.Table)
	}
	if rule.RequireAuth && !id.IsAuthenticated() {
		return query.Request{}, dataerr.Unauthorized("table %s requires an authenticated caller", out.Table)
	}
	if len(rule.Procedures) > 0 {
		return query.Request{}, dataerr.PermissionDenied("table %s is managed through the %s procedure only",
			out.Table, strings.Join(rule.Procedures, ", "))
	}

	grant, ok := rule.Actions[out.Action]
	if !ok {
		if proc, redirect := rule.Redirects[out.Action]; redirect {
			return query.Request{}, dataerr.PermissionDenied("%s on %s is not permitted, use the %s procedure",
				out.Action, out.Table, proc)
		}
		return query.Request{}, dataerr.PermissionDenied("%s on %s is not permitted for role %s",
			out.Action, out.Table, id.Role)
	}

	if err := e.checkPayload(out, grant); err != nil {
		return query.Request{}, err
	}

	now := e.now()
	for _, fn := range grant.Filters {
		for _, f := range fn(id, now) {
			if err := e.registry.AssertColumnAllowed(out.Table, f.Column); err != nil {
				return query.Request{}, err
			}
			out.Filters = append(out.Filters, f)
		}
	}

	if grant.OwnerColumn != "" && out.Action == query.Insert {
		if err := e.registry.AssertColumnAllowed(out.Table, grant.OwnerColumn); err != nil {
			return query.Request{}, err
		}
		for _, rec := range out.Values {
			rec[grant.OwnerColumn] = id.UserID()
		}
	}

	return out, nil
}

func (e *Enforcer) checkPayload(req query.Request, grant Grant) error {
	if req.Action != query.Insert && req.Action != query.Update {
		return nil
	}

	var allowed map[string]struct{}
	if len(grant.AllowedFields) > 0 {
		allowed = make(map[string]struct{}, len(grant.AllowedFields))
		for _, f := range grant.AllowedFields {
			allowed[f] = struct{}{}
		}
	}

	for _, rec := range req.Values {
		for _, col := range sortedKeys(rec) {
			if allowed != nil {
				if _, ok := allowed[col]; !ok {
					return dataerr.PermissionDenied("column %s of %s may not be written", col, req.Table)
				}
			}
			values, restricted := grant.AllowedValues[col]
			if restricted && !containsValue(values, rec[col]) {
				return dataerr.PermissionDenied("value %v is not permitted for %s.%s", rec[col], req.Table, col)
			}
		}
	}
	return nil
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if reflect.DeepEqual(candidate, v) {
			return true
		}
	}
	return false
}

func sortedKeys(rec query.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
