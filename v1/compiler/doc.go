// Package compiler turns structured query requests into parameterized SQL,
// runs them through the executor and shapes the result.
//
// Every identifier is checked against the schema registry and the
// identifier gate before it is quoted; every value is bound as an @pN
// parameter. Writes carry the extra bookkeeping the store does not do on
// its own: uuid and timestamp injection on insert, a refusal to mutate
// without a WHERE clause, re-selecting written rows by primary key, and a
// full recount of derived counters (tags.usage_count) after any write that
// can change them. Renaming or deleting a tag first rewrites the JSON tag
// arrays that reference it.
package compiler
