// Package kafka publishes data plane domain events.
//
// The RPC dispatcher emits booking.created after a successful
// create_bookings call and maintenance.completed after run_maintenance.
// Each event is a JSON Envelope keyed by its name:
//
//	{"id":"…","event":"booking.created","occurred_at":"…","payload":{"booking_ids":["…"],"user_id":"u1","dates":["2025-03-01"]}}
//
// Publishing is best effort from the dispatcher's point of view: a failed
// write is logged and observed but never fails the procedure call.
package kafka
