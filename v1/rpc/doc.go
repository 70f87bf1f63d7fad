// Package rpc implements the closed catalog of server-side procedures:
// feed and wall reads, like/pin toggles, de-duplicated view counting,
// booking creation and cancellation, admin statistics, tag recounts and
// scheduled maintenance.
//
// Procedures issue their statements through the compiler directly and are
// not subject to the row rules of package policy; each one checks its
// caller with an Access level instead. There are no transactions: a
// procedure is a sequence of independent statements, and a failure part
// way leaves the earlier statements applied.
//
// Collaborators are optional:
//
//	d := rpc.NewDispatcher(c, rpc.Config{}, log).
//		WithAssetStore(assets).    // run_maintenance deletes stored files first
//		WithEventPublisher(events). // booking.created, maintenance.completed
//		WithViewCache(views)        // fast path for increment_photo_view
//
//	out, err := d.Call(ctx, identity.SystemIdentity(), rpc.ProcRunMaintenance, nil)
package rpc
