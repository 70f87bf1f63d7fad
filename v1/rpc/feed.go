package rpc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

// FeedPage is one page of the public photo feed.
type FeedPage struct {
	Items    []query.Record `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// UnavailableDates lists the dates a booking cannot take.
type UnavailableDates struct {
	Blackout []string `json:"blackout"`
	Booked   []string `json:"booked"`
	Dates    []string `json:"dates"`
}

var feedColumns = []string{
	"id", "album_id", "url", "thumbnail_url", "title", "tags",
	"like_count", "view_count", "pin_count", "created_at",
}

func aliased(b *compiler.Builder, alias string, columns ...string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + b.Quote(c)
	}
	return strings.Join(out, ", ")
}

func (d *Dispatcher) getPublicFeed(ctx context.Context, id identity.Identity, args Args) (any, error) {
	page, err := args.Int("page", 1)
	if err != nil {
		return nil, err
	}
	size, err := args.Int("page_size", d.cfg.FeedPageSize)
	if err != nil {
		return nil, err
	}
	if page < 1 || size < 1 {
		return nil, dataerr.Validation("page and page_size must be positive")
	}
	if size > d.cfg.FeedMaxPageSize {
		size = d.cfg.FeedMaxPageSize
	}

	photos, err := d.table(schema.TablePhotos)
	if err != nil {
		return nil, err
	}
	filters := []query.Filter{{Column: "is_public", Operator: query.Eq, Value: 1}}
	if tag := args.String("tag"); tag != "" {
		filters = append(filters, query.Filter{Column: "tags", Operator: query.Contains, Value: tag})
	}

	b := d.compiler.NewBuilder()
	var sql string
	if id.IsAuthenticated() {
		sql = fmt.Sprintf("SELECT %s, CASE WHEN l.%s IS NULL THEN 0 ELSE 1 END AS %s FROM %s p LEFT JOIN %s l ON l.%s = p.%s AND l.%s = %s",
			aliased(b, "p", feedColumns...), b.Quote("id"), b.Quote("is_liked"),
			b.Quote(schema.TablePhotos), b.Quote(schema.TablePhotoLikes),
			b.Quote("photo_id"), b.Quote("id"), b.Quote("user_id"), b.Bind(id.UserID()))
	} else {
		sql = fmt.Sprintf("SELECT %s, 0 AS %s FROM %s p", aliased(b, "p", feedColumns...), b.Quote("is_liked"), b.Quote(schema.TablePhotos))
	}
	where, err := b.Where(photos, filters)
	if err != nil {
		return nil, err
	}
	sql += where + fmt.Sprintf(" ORDER BY p.%s DESC LIMIT %d OFFSET %d", b.Quote("created_at"), size, (page-1)*size)

	result := FeedPage{Page: page, PageSize: size}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := d.run(gctx, b, sql, database.ModeQuery)
		if err != nil {
			return err
		}
		rows := compiler.DecodeJSONColumns(photos, res.Rows)
		for _, row := range rows {
			row["is_liked"] = compiler.ToInt64(row["is_liked"]) == 1
		}
		result.Items = rows
		return nil
	})
	g.Go(func() (err error) {
		result.Total, err = d.count(gctx, schema.TablePhotos, filters...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if result.Items == nil {
		result.Items = []query.Record{}
	}
	return result, nil
}

func (d *Dispatcher) getMyWall(ctx context.Context, id identity.Identity, _ Args) (any, error) {
	uid, err := requireUser(id)
	if err != nil {
		return nil, err
	}
	photos, err := d.table(schema.TablePhotos)
	if err != nil {
		return nil, err
	}

	b := d.compiler.NewBuilder()
	sql := fmt.Sprintf("SELECT %s, w.%s AS %s FROM %s w JOIN %s p ON p.%s = w.%s WHERE w.%s = %s ORDER BY w.%s DESC",
		aliased(b, "p", feedColumns...), b.Quote("created_at"), b.Quote("pinned_at"),
		b.Quote(schema.TableWallPins), b.Quote(schema.TablePhotos),
		b.Quote("id"), b.Quote("photo_id"), b.Quote("user_id"), b.Bind(uid), b.Quote("created_at"))
	res, err := d.run(ctx, b, sql, database.ModeQuery)
	if err != nil {
		return nil, err
	}
	rows := compiler.DecodeJSONColumns(photos, res.Rows)
	if rows == nil {
		rows = []query.Record{}
	}
	return rows, nil
}

func (d *Dispatcher) getUnavailableDates(ctx context.Context, _ identity.Identity, args Args) (any, error) {
	today := d.today()
	from, err := parseDateArg(args, "from", today)
	if err != nil {
		return nil, err
	}
	to, err := parseDateArg(args, "to", today.AddDate(0, 0, d.cfg.BookingHorizonDays))
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, dataerr.Validation("to must not be before from")
	}
	lo, hi := from.Format(dateLayout), to.Format(dateLayout)

	var blackout, booked *compiler.Response
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		blackout, err = d.execute(gctx, query.Request{
			Table:   schema.TableBlackoutDates,
			Action:  query.Select,
			Columns: "date",
			Filters: []query.Filter{
				{Column: "date", Operator: query.Gte, Value: lo},
				{Column: "date", Operator: query.Lte, Value: hi},
			},
		})
		return err
	})
	g.Go(func() (err error) {
		booked, err = d.execute(gctx, query.Request{
			Table:   schema.TableBookings,
			Action:  query.Select,
			Columns: "booking_date",
			Filters: []query.Filter{
				{Column: "booking_date", Operator: query.Gte, Value: lo},
				{Column: "booking_date", Operator: query.Lte, Value: hi},
				{Column: "status", Operator: query.In, Value: schema.ActiveBookingStatuses},
			},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := UnavailableDates{
		Blackout: uniqueSorted(blackout.Rows, "date"),
		Booked:   uniqueSorted(booked.Rows, "booking_date"),
	}
	out.Dates = mergeSorted(out.Blackout, out.Booked)
	return out, nil
}

func parseDateArg(args Args, key string, def time.Time) (time.Time, error) {
	s := args.String(key)
	if s == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, def.Location())
	if err != nil {
		return time.Time{}, dataerr.Validation("%s must be a date in YYYY-MM-DD format", key)
	}
	return t, nil
}

func uniqueSorted(rows []query.Record, column string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, row := range rows {
		v := fmt.Sprint(row[column])
		if len(v) > len(dateLayout) {
			v = v[:len(dateLayout)]
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
