// Package dal is the outermost layer of the data plane.
//
// Application code talks to a *Client only. Structured requests are built
// with the fluent QueryBuilder and run as enforce, compile, execute; named
// procedures go through Rpc. Every call returns a Result and never an error
// or a panic: failures of any stage, including recovered panics, arrive as
// Result.Error in the uniform {message, code} shape.
//
//	ctx = identity.WithIdentity(ctx, identity.ForUser(identity.Principal{ID: userID}))
//
//	res := client.From(ctx, "bookings").
//		Select("id, booking_date, status").
//		Gte("booking_date", today).
//		Order("booking_date", true).
//		Execute()
//	if !res.OK() {
//		return fmt.Errorf("%s: %s", res.Error.Code, res.Error.Message)
//	}
//
//	res = client.Rpc(ctx, "toggle_like", map[string]any{"photo_id": photoID})
//
// FXModule wires the pipeline from a database.Channel and the configs of
// the executor and the dispatcher.
package dal
