package rpc

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

const topTagsLimit = 10

// AdminStats is the dashboard report of get_admin_stats.
type AdminStats struct {
	Users            int64            `json:"users"`
	Bookings         int64            `json:"bookings"`
	BookingsByStatus map[string]int64 `json:"bookings_by_status"`
	UpcomingBookings int64            `json:"upcoming_bookings"`
	Albums           int64            `json:"albums"`
	Photos           int64            `json:"photos"`
	PublicPhotos     int64            `json:"public_photos"`
	Likes            int64            `json:"likes"`
	Views            int64            `json:"views"`
	Pins             int64            `json:"pins"`
	Feedback         int64            `json:"feedback"`
	TopTags          []TagUsage       `json:"top_tags"`
}

// TagUsage is one entry of the most used tags.
type TagUsage struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// MaintenanceReport summarizes one run_maintenance pass.
type MaintenanceReport struct {
	ExpiredBookings   int64  `json:"expired_bookings"`
	CompletedBookings int64  `json:"completed_bookings"`
	DeletedAlbums     int64  `json:"deleted_albums"`
	DeletedPhotos     int64  `json:"deleted_photos"`
	DeletedAssets     int    `json:"deleted_assets"`
	PurgedLikes       int64  `json:"purged_likes"`
	PurgedViews       int64  `json:"purged_views"`
	PurgedPins        int64  `json:"purged_pins"`
	TagsRecounted     int    `json:"tags_recounted"`
	AssetFailure      string `json:"asset_failure,omitempty"`
}

func (d *Dispatcher) getAdminStats(ctx context.Context, _ identity.Identity, _ Args) (any, error) {
	stats := AdminStats{}
	today := d.today().Format(dateLayout)

	counts := []struct {
		into    *int64
		table   string
		filters []query.Filter
	}{
		{&stats.Users, schema.TableUsers, nil},
		{&stats.Bookings, schema.TableBookings, nil},
		{&stats.UpcomingBookings, schema.TableBookings, []query.Filter{
			{Column: "booking_date", Operator: query.Gte, Value: today},
			{Column: "status", Operator: query.In, Value: schema.ActiveBookingStatuses},
		}},
		{&stats.Albums, schema.TableAlbums, nil},
		{&stats.Photos, schema.TablePhotos, nil},
		{&stats.PublicPhotos, schema.TablePhotos, []query.Filter{{Column: "is_public", Operator: query.Eq, Value: 1}}},
		{&stats.Likes, schema.TablePhotoLikes, nil},
		{&stats.Views, schema.TablePhotoViews, nil},
		{&stats.Pins, schema.TableWallPins, nil},
		{&stats.Feedback, schema.TableFeedback, nil},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() (err error) {
			*c.into, err = d.count(gctx, c.table, c.filters...)
			return err
		})
	}
	g.Go(func() (err error) {
		stats.BookingsByStatus, err = d.bookingsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TopTags, err = d.topTags(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (d *Dispatcher) bookingsByStatus(ctx context.Context) (map[string]int64, error) {
	b := d.compiler.NewBuilder()
	sql := fmt.Sprintf("SELECT %s, COUNT(*) AS %s FROM %s GROUP BY %s",
		b.Quote("status"), b.Quote("total"), b.Quote(schema.TableBookings), b.Quote("status"))
	res, err := d.run(ctx, b, sql, database.ModeQuery)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(res.Rows))
	for _, row := range res.Rows {
		out[recordString(row, "status")] = compiler.ToInt64(row["total"])
	}
	return out, nil
}

func (d *Dispatcher) topTags(ctx context.Context) ([]TagUsage, error) {
	limit := topTagsLimit
	resp, err := d.execute(ctx, query.Request{
		Table:   schema.TableTags,
		Action:  query.Select,
		Columns: "name, usage_count",
		Filters: []query.Filter{{Column: "usage_count", Operator: query.Gt, Value: 0}},
		Orders:  []query.Order{{Column: "usage_count"}, {Column: "name", Ascending: true}},
		Limit:   &limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]TagUsage, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		out = append(out, TagUsage{Name: recordString(row, "name"), Count: compiler.ToInt64(row["usage_count"])})
	}
	return out, nil
}

func (d *Dispatcher) recountTagUsage(ctx context.Context, _ identity.Identity, _ Args) (any, error) {
	updated, err := d.compiler.Recount(ctx)
	if err != nil {
		return nil, err
	}
	d.logInfo("Recounted tag usage", map[string]interface{}{"updated": updated})
	return map[string]any{"updated": updated}, nil
}

// runMaintenance is a sequence of independent statements. A failure midway
// leaves the earlier steps applied; the next run picks up the remainder.
func (d *Dispatcher) runMaintenance(ctx context.Context, _ identity.Identity, _ Args) (any, error) {
	start := time.Now()
	report := MaintenanceReport{}
	today := d.today().Format(dateLayout)

	var err error
	report.ExpiredBookings, err = d.transitionPast(ctx, today, schema.StatusPending, schema.StatusExpired)
	if err != nil {
		return nil, err
	}
	report.CompletedBookings, err = d.transitionPast(ctx, today, schema.StatusConfirmed, schema.StatusCompleted)
	if err != nil {
		return nil, err
	}

	if err := d.removeExpiredMedia(ctx, &report); err != nil {
		return nil, err
	}

	for _, purge := range []struct {
		into  *int64
		table string
	}{
		{&report.PurgedLikes, schema.TablePhotoLikes},
		{&report.PurgedViews, schema.TablePhotoViews},
		{&report.PurgedPins, schema.TableWallPins},
	} {
		if *purge.into, err = d.purgeOrphans(ctx, purge.table); err != nil {
			return nil, err
		}
	}

	if report.TagsRecounted, err = d.compiler.Recount(ctx); err != nil {
		return nil, err
	}

	d.publish(ctx, EventMaintenanceCompleted, report)
	d.logInfo("Maintenance completed", map[string]interface{}{
		"expired_bookings":   report.ExpiredBookings,
		"completed_bookings": report.CompletedBookings,
		"deleted_albums":     report.DeletedAlbums,
		"deleted_photos":     report.DeletedPhotos,
		"deleted_assets":     report.DeletedAssets,
		"tags_recounted":     report.TagsRecounted,
		"duration_ms":        time.Since(start).Milliseconds(),
	})
	return report, nil
}

// transitionPast moves bookings dated before today from one status to another.
func (d *Dispatcher) transitionPast(ctx context.Context, today, from, to string) (int64, error) {
	resp, err := d.execute(ctx, query.Request{
		Table:  schema.TableBookings,
		Action: query.Update,
		Values: []query.Record{{"status": to}},
		Filters: []query.Filter{
			{Column: "status", Operator: query.Eq, Value: from},
			{Column: "booking_date", Operator: query.Lt, Value: today},
		},
	})
	if err != nil {
		return 0, err
	}
	return resp.Affected, nil
}

// removeExpiredMedia deletes expired albums with their photos and photos whose
// album no longer exists. Stored assets are removed before any row; a failed
// asset deletion is reported and the rows are deleted regardless.
func (d *Dispatcher) removeExpiredMedia(ctx context.Context, report *MaintenanceReport) error {
	albums, err := d.execute(ctx, query.Request{
		Table:   schema.TableAlbums,
		Action:  query.Select,
		Columns: "id, cover_url",
		Filters: []query.Filter{{Column: "expires_at", Operator: query.Lt, Value: d.now().UTC()}},
	})
	if err != nil {
		return err
	}
	albumIDs := make([]any, 0, len(albums.Rows))
	urls := newURLSet()
	for _, row := range albums.Rows {
		albumIDs = append(albumIDs, row["id"])
		urls.add(recordString(row, "cover_url"))
	}

	var photos []query.Record
	if len(albumIDs) > 0 {
		resp, err := d.execute(ctx, query.Request{
			Table:   schema.TablePhotos,
			Action:  query.Select,
			Columns: "id, url, thumbnail_url",
			Filters: []query.Filter{{Column: "album_id", Operator: query.In, Value: albumIDs}},
		})
		if err != nil {
			return err
		}
		photos = append(photos, resp.Rows...)
	}
	orphans, err := d.orphanPhotos(ctx)
	if err != nil {
		return err
	}
	photos = append(photos, orphans...)

	photoIDs := make([]any, 0, len(photos))
	seen := map[string]struct{}{}
	for _, row := range photos {
		key := recordString(row, "id")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		photoIDs = append(photoIDs, row["id"])
		urls.add(recordString(row, "url"))
		urls.add(recordString(row, "thumbnail_url"))
	}

	d.deleteAssets(ctx, urls.list, report)

	if len(photoIDs) > 0 {
		resp, err := d.execute(ctx, query.Request{
			Table:   schema.TablePhotos,
			Action:  query.Delete,
			Filters: []query.Filter{{Column: "id", Operator: query.In, Value: photoIDs}},
		})
		if err != nil {
			return err
		}
		report.DeletedPhotos = resp.Affected
	}
	if len(albumIDs) > 0 {
		resp, err := d.execute(ctx, query.Request{
			Table:   schema.TableAlbums,
			Action:  query.Delete,
			Filters: []query.Filter{{Column: "id", Operator: query.In, Value: albumIDs}},
		})
		if err != nil {
			return err
		}
		report.DeletedAlbums = resp.Affected
	}
	return nil
}

// deleteAssets removes stored assets best-effort. Failures end up in the
// report and never stop the row cleanup.
func (d *Dispatcher) deleteAssets(ctx context.Context, urls []string, report *MaintenanceReport) {
	if len(urls) == 0 {
		return
	}
	if d.assets == nil {
		d.logWarn("No asset store configured, stored assets of removed media are left in place", nil, map[string]interface{}{
			"assets": len(urls),
		})
		return
	}
	if err := d.assets.DeleteAssets(ctx, urls); err != nil {
		d.logWarn("Failed to delete stored assets, removing rows anyway", err, map[string]interface{}{
			"assets": len(urls),
		})
		report.AssetFailure = err.Error()
		return
	}
	report.DeletedAssets = len(urls)
}

func (d *Dispatcher) orphanPhotos(ctx context.Context) ([]query.Record, error) {
	b := d.compiler.NewBuilder()
	sql := fmt.Sprintf("SELECT p.%s, p.%s, p.%s FROM %s p WHERE p.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s a WHERE a.%s = p.%s)",
		b.Quote("id"), b.Quote("url"), b.Quote("thumbnail_url"), b.Quote(schema.TablePhotos),
		b.Quote("album_id"), b.Quote(schema.TableAlbums), b.Quote("id"), b.Quote("album_id"))
	res, err := d.run(ctx, b, sql, database.ModeQuery)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// purgeOrphans deletes rows of table whose photo no longer exists.
func (d *Dispatcher) purgeOrphans(ctx context.Context, table string) (int64, error) {
	b := d.compiler.NewBuilder()
	sql := fmt.Sprintf("DELETE FROM %s WHERE NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = %s.%s)",
		b.Quote(table), b.Quote(schema.TablePhotos), b.Quote("id"), b.Quote(table), b.Quote("photo_id"))
	res, err := d.run(ctx, b, sql, database.ModeExec)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

type urlSet struct {
	seen map[string]struct{}
	list []string
}

func newURLSet() *urlSet {
	return &urlSet{seen: map[string]struct{}{}}
}

func (s *urlSet) add(url string) {
	if url == "" {
		return
	}
	if _, ok := s.seen[url]; ok {
		return
	}
	s.seen[url] = struct{}{}
	s.list = append(s.list, url)
}
