// Package policy emulates row-level security for the structured query path.
//
// Rules are kept in a RuleTable keyed by table and role. Each rule lists the
// permitted actions together with the filters forced onto them, the payload
// columns a write may carry and the owner column overwritten on insert.
// Admin and system callers bypass the table; any other (table, role) pair
// without a rule is denied.
//
// Enforcement only ever adds filters, so a caller-supplied filter can narrow
// a result but never widen it:
//
//	req := query.Request{Table: "bookings", Action: query.Select}
//	enforced, err := enforcer.Enforce(req, identity.ForUser(identity.Principal{ID: "u1"}))
//	// enforced.Filters now ends with user_id = "u1"
package policy
