package rpc

import (
	"context"
	"fmt"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

// ToggleResult is the state after a like or pin toggle.
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// ViewResult reports whether a view was counted.
type ViewResult struct {
	Counted   bool  `json:"counted"`
	ViewCount int64 `json:"view_count"`
}

func (d *Dispatcher) toggleLike(ctx context.Context, id identity.Identity, args Args) (any, error) {
	return d.toggle(ctx, id, args, schema.TablePhotoLikes, "like_count")
}

func (d *Dispatcher) toggleWallPin(ctx context.Context, id identity.Identity, args Args) (any, error) {
	return d.toggle(ctx, id, args, schema.TableWallPins, "pin_count")
}

// toggle is check-then-act: a concurrent toggle by the same caller can
// interleave between the lookup and the write. A duplicate insert is
// treated as "already active" so the counter is not bumped twice.
func (d *Dispatcher) toggle(ctx context.Context, id identity.Identity, args Args, table, counter string) (any, error) {
	uid, err := requireUser(id)
	if err != nil {
		return nil, err
	}
	photoID, err := args.RequireString("photo_id")
	if err != nil {
		return nil, err
	}
	if err := d.requirePhoto(ctx, photoID); err != nil {
		return nil, err
	}

	existing, err := d.execute(ctx, query.Request{
		Table:   table,
		Action:  query.Select,
		Columns: "id",
		Filters: []query.Filter{
			{Column: "photo_id", Operator: query.Eq, Value: photoID},
			{Column: "user_id", Operator: query.Eq, Value: uid},
		},
	})
	if err != nil {
		return nil, err
	}

	result := ToggleResult{}
	if len(existing.Rows) > 0 {
		ids := make([]any, len(existing.Rows))
		for i, row := range existing.Rows {
			ids[i] = row["id"]
		}
		if _, err := d.execute(ctx, query.Request{
			Table:   table,
			Action:  query.Delete,
			Filters: []query.Filter{{Column: "id", Operator: query.In, Value: ids}},
		}); err != nil {
			return nil, err
		}
		if err := d.adjustCounter(ctx, photoID, counter, -1); err != nil {
			return nil, err
		}
	} else {
		_, err := d.execute(ctx, query.Request{
			Table:  table,
			Action: query.Insert,
			Values: []query.Record{{"photo_id": photoID, "user_id": uid}},
		})
		switch {
		case dataerr.HasCode(err, dataerr.CodeDuplicateKey):
		case err != nil:
			return nil, err
		default:
			if err := d.adjustCounter(ctx, photoID, counter, 1); err != nil {
				return nil, err
			}
		}
		result.Active = true
	}

	result.Count, err = d.photoCounter(ctx, photoID, counter)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) incrementPhotoView(ctx context.Context, id identity.Identity, args Args) (any, error) {
	photoID, err := args.RequireString("photo_id")
	if err != nil {
		return nil, err
	}

	dedupe := []query.Filter{{Column: "photo_id", Operator: query.Eq, Value: photoID}}
	view := query.Record{"photo_id": photoID}
	viewer := "user:" + id.UserID()
	if id.IsAuthenticated() {
		dedupe = append(dedupe, query.Filter{Column: "user_id", Operator: query.Eq, Value: id.UserID()})
		view["user_id"] = id.UserID()
	} else {
		token := args.String("session_token")
		if token == "" {
			return nil, dataerr.Validation("session_token is required for anonymous views")
		}
		dedupe = append(dedupe,
			query.Filter{Column: "session_id", Operator: query.Eq, Value: token},
			query.Filter{Column: "user_id", Operator: query.Eq, Value: nil},
		)
		view["session_id"] = token
		viewer = "session:" + token
	}

	if err := d.requirePhoto(ctx, photoID); err != nil {
		return nil, err
	}

	result := ViewResult{}
	key := photoID + ":" + viewer
	if d.claimView(ctx, key) {
		counted, err := d.recordView(ctx, photoID, dedupe, view)
		if err != nil {
			d.releaseView(ctx, key)
			return nil, err
		}
		result.Counted = counted
	}

	result.ViewCount, err = d.photoCounter(ctx, photoID, "view_count")
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordView inserts the view row and bumps the counter unless the store
// already holds a view for the same pair.
func (d *Dispatcher) recordView(ctx context.Context, photoID string, dedupe []query.Filter, view query.Record) (bool, error) {
	limit := 1
	seen, err := d.execute(ctx, query.Request{
		Table:   schema.TablePhotoViews,
		Action:  query.Select,
		Columns: "id",
		Filters: dedupe,
		Limit:   &limit,
	})
	if err != nil {
		return false, err
	}
	if len(seen.Rows) > 0 {
		return false, nil
	}

	if _, err := d.execute(ctx, query.Request{
		Table:  schema.TablePhotoViews,
		Action: query.Insert,
		Values: []query.Record{view},
	}); err != nil {
		return false, err
	}
	if err := d.adjustCounter(ctx, photoID, "view_count", 1); err != nil {
		return false, err
	}
	return true, nil
}

// claimView reports whether the store lookup should run. Without a cache,
// or when the cache fails, every call falls through to the store.
func (d *Dispatcher) claimView(ctx context.Context, key string) bool {
	if d.views == nil {
		return true
	}
	claimed, err := d.views.Claim(ctx, key)
	if err != nil {
		d.logWarn("View cache unavailable, falling back to store", err, map[string]interface{}{"key": key})
		return true
	}
	return claimed
}

func (d *Dispatcher) releaseView(ctx context.Context, key string) {
	if d.views == nil {
		return
	}
	if err := d.views.Release(ctx, key); err != nil {
		d.logWarn("Failed to release view claim", err, map[string]interface{}{"key": key})
	}
}

func (d *Dispatcher) requirePhoto(ctx context.Context, photoID string) error {
	resp, err := d.execute(ctx, query.Request{
		Table:            schema.TablePhotos,
		Action:           query.Select,
		Columns:          "id",
		Filters:          []query.Filter{{Column: "id", Operator: query.Eq, Value: photoID}},
		WantAtMostOneRow: true,
	})
	if err != nil {
		return err
	}
	if len(resp.Rows) == 0 {
		return dataerr.Validation("photo %s does not exist", photoID)
	}
	return nil
}

// adjustCounter moves a photo counter by delta and never below zero.
func (d *Dispatcher) adjustCounter(ctx context.Context, photoID, counter string, delta int) error {
	b := d.compiler.NewBuilder()
	col := b.Quote(counter)
	expr := fmt.Sprintf("%s + %d", col, delta)
	if delta < 0 {
		expr = fmt.Sprintf("GREATEST(%s - %d, 0)", col, -delta)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s", b.Quote(schema.TablePhotos), col, expr, b.Quote("id"), b.Bind(photoID))
	_, err := d.run(ctx, b, sql, database.ModeExec)
	return err
}

func (d *Dispatcher) photoCounter(ctx context.Context, photoID, counter string) (int64, error) {
	resp, err := d.execute(ctx, query.Request{
		Table:         schema.TablePhotos,
		Action:        query.Select,
		Columns:       counter,
		Filters:       []query.Filter{{Column: "id", Operator: query.Eq, Value: photoID}},
		WantSingleRow: true,
	})
	if err != nil {
		return 0, err
	}
	return compiler.ToInt64(resp.Rows[0][counter]), nil
}
