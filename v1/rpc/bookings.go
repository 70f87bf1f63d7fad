package rpc

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// citySuffixes are administrative suffixes stripped before comparing city
// names, longest first so that compound suffixes win.
var citySuffixes = []string{
	"维吾尔自治区", "壮族自治区", "回族自治区", "特别行政区", "自治区", "自治州", "地区", "省", "市", "盟", "县", "区",
}

var requiredBookingFields = []string{"type_id", "booking_date", "phone", "city", "contact_name"}

// NormalizePhone strips separators and the +86 country code and validates
// a mainland mobile number.
func NormalizePhone(raw string) (string, bool) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(p, "+86"):
		p = p[3:]
	case strings.HasPrefix(p, "0086"):
		p = p[4:]
	case strings.HasPrefix(p, "86") && len(p) == 13:
		p = p[2:]
	}
	return p, mobilePattern.MatchString(p)
}

// NormalizeCity trims whitespace and one administrative suffix.
func NormalizeCity(name string) string {
	n := strings.TrimSpace(name)
	for _, suffix := range citySuffixes {
		if strings.HasSuffix(n, suffix) && len(n) > len(suffix) {
			return strings.TrimSuffix(n, suffix)
		}
	}
	return n
}

// CityMatches reports whether city and an allow-list entry name the same
// place: after normalization either contains the other.
func CityMatches(city, allowed string) bool {
	a, b := NormalizeCity(city), NormalizeCity(allowed)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// bookingCheck is one of the independent store checks run per row.
type bookingCheck func(ctx context.Context, row query.Record) error

func (d *Dispatcher) createBookings(ctx context.Context, id identity.Identity, args Args) (any, error) {
	rows, err := args.Records("bookings")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, dataerr.ValidationCode(dataerr.CodeEmptyInsertPayload, "no bookings given")
	}
	if len(rows) > d.cfg.MaxBatchSize {
		return nil, dataerr.Validation("at most %d bookings per call, got %d", d.cfg.MaxBatchSize, len(rows))
	}

	today := d.today()
	horizon := today.AddDate(0, 0, d.cfg.BookingHorizonDays)
	dates := make(map[string]int, len(rows))
	candidates := make([]query.Record, len(rows))

	for i, in := range rows {
		row, err := d.shapeBooking(id, in, today, horizon)
		if err != nil {
			return nil, dataerr.Validation("booking %d: %s", i+1, messageOf(err))
		}
		date := row["booking_date"].(string)
		if prev, dup := dates[date]; dup {
			return nil, dataerr.Validation("bookings %d and %d are for the same date %s", prev+1, i+1, date)
		}
		dates[date] = i
		candidates[i] = row
	}

	if err := d.checkBookings(ctx, candidates); err != nil {
		return nil, err
	}

	resp, err := d.execute(ctx, query.Request{
		Table:             schema.TableBookings,
		Action:            query.Insert,
		Values:            candidates,
		ReturnWrittenRows: true,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		ids = append(ids, row["id"])
	}
	d.publish(ctx, EventBookingCreated, map[string]any{
		"booking_ids": ids,
		"user_id":     candidates[0]["user_id"],
		"dates":       sortedDates(dates),
	})
	return resp.Rows, nil
}

// shapeBooking validates one candidate row and returns the record that
// will be inserted.
func (d *Dispatcher) shapeBooking(id identity.Identity, in query.Record, today, horizon time.Time) (query.Record, error) {
	for _, field := range requiredBookingFields {
		if recordString(in, field) == "" {
			return nil, dataerr.Validation("%s is required", field)
		}
	}

	phone, ok := NormalizePhone(recordString(in, "phone"))
	if !ok {
		return nil, dataerr.Validation("phone %q is not a valid mobile number", recordString(in, "phone"))
	}

	date, err := time.ParseInLocation(dateLayout, recordString(in, "booking_date"), today.Location())
	if err != nil {
		return nil, dataerr.Validation("booking_date must be a date in YYYY-MM-DD format")
	}
	if date.Before(today) {
		return nil, dataerr.Validation("booking_date %s is in the past", date.Format(dateLayout))
	}
	if date.After(horizon) {
		return nil, dataerr.Validation("booking_date %s is more than %d days ahead", date.Format(dateLayout), d.cfg.BookingHorizonDays)
	}

	userID := id.UserID()
	if id.IsPrivileged() {
		if v := recordString(in, "user_id"); v != "" {
			userID = v
		}
	}
	if userID == "" {
		return nil, dataerr.Validation("user_id is required")
	}

	out := query.Record{
		"user_id":      userID,
		"type_id":      in["type_id"],
		"booking_date": date.Format(dateLayout),
		"contact_name": recordString(in, "contact_name"),
		"phone":        phone,
		"city":         recordString(in, "city"),
		"status":       schema.StatusPending,
	}
	for _, optional := range []string{"email", "location", "notes"} {
		if v := recordString(in, optional); v != "" {
			out[optional] = v
		}
	}
	return out, nil
}

// checkBookings runs the four store checks of every row concurrently and
// returns the first failure in row order, then check order.
func (d *Dispatcher) checkBookings(ctx context.Context, rows []query.Record) error {
	checks := []bookingCheck{d.checkTypeActive, d.checkCityAllowed, d.checkNotBlackedOut, d.checkNoConflict}
	failures := make([][]error, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		failures[i] = make([]error, len(checks))
		for j, check := range checks {
			g.Go(func() error {
				err := check(gctx, row)
				if dataerr.GetErrorCategory(err) == dataerr.KindValidation {
					failures[i][j] = err
					return nil
				}
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range rows {
		for _, err := range failures[i] {
			if err != nil {
				return dataerr.ValidationCode(dataerr.Normalize(err).Code, "booking %d: %s", i+1, messageOf(err))
			}
		}
	}
	return nil
}

func (d *Dispatcher) checkTypeActive(ctx context.Context, row query.Record) error {
	resp, err := d.execute(ctx, query.Request{
		Table:   schema.TableBookingTypes,
		Action:  query.Select,
		Columns: "id",
		Filters: []query.Filter{
			{Column: "id", Operator: query.Eq, Value: row["type_id"]},
			{Column: "is_active", Operator: query.Eq, Value: 1},
		},
	})
	if err != nil {
		return err
	}
	if len(resp.Rows) == 0 {
		return dataerr.Validation("booking type %v is not available", row["type_id"])
	}
	return nil
}

func (d *Dispatcher) checkCityAllowed(ctx context.Context, row query.Record) error {
	resp, err := d.execute(ctx, query.Request{
		Table:   schema.TableAllowedCities,
		Action:  query.Select,
		Columns: "city_name",
		Filters: []query.Filter{{Column: "is_active", Operator: query.Eq, Value: 1}},
	})
	if err != nil {
		return err
	}
	city := recordString(row, "city")
	for _, allowed := range resp.Rows {
		if CityMatches(city, recordString(allowed, "city_name")) {
			return nil
		}
	}
	return dataerr.Validation("city %s is not served", city)
}

func (d *Dispatcher) checkNotBlackedOut(ctx context.Context, row query.Record) error {
	resp, err := d.execute(ctx, query.Request{
		Table:   schema.TableBlackoutDates,
		Action:  query.Select,
		Columns: "date, reason",
		Filters: []query.Filter{{Column: "date", Operator: query.Eq, Value: row["booking_date"]}},
	})
	if err != nil {
		return err
	}
	if len(resp.Rows) > 0 {
		return dataerr.ValidationCode(dataerr.CodeDateUnavailable, "date %s is unavailable: %s",
			row["booking_date"], recordString(resp.Rows[0], "reason"))
	}
	return nil
}

// checkNoConflict allows one active booking per day. The check and the
// later insert are not atomic; a racing insert for the same date can pass.
func (d *Dispatcher) checkNoConflict(ctx context.Context, row query.Record) error {
	limit := 1
	resp, err := d.execute(ctx, query.Request{
		Table:   schema.TableBookings,
		Action:  query.Select,
		Columns: "id",
		Filters: []query.Filter{
			{Column: "booking_date", Operator: query.Eq, Value: row["booking_date"]},
			{Column: "status", Operator: query.In, Value: schema.ActiveBookingStatuses},
		},
		Limit: &limit,
	})
	if err != nil {
		return err
	}
	if len(resp.Rows) > 0 {
		return dataerr.ValidationCode(dataerr.CodeDateUnavailable, "date %s is already booked", row["booking_date"])
	}
	return nil
}

func (d *Dispatcher) cancelBooking(ctx context.Context, id identity.Identity, args Args) (any, error) {
	bookingID, err := args.RequireString("booking_id")
	if err != nil {
		return nil, err
	}

	filters := []query.Filter{
		{Column: "id", Operator: query.Eq, Value: bookingID},
		{Column: "status", Operator: query.In, Value: schema.ActiveBookingStatuses},
		{Column: "booking_date", Operator: query.Gte, Value: d.today().Format(dateLayout)},
	}
	if !id.IsPrivileged() {
		uid, err := requireUser(id)
		if err != nil {
			return nil, err
		}
		filters = append(filters, query.Filter{Column: "user_id", Operator: query.Eq, Value: uid})
	}

	resp, err := d.execute(ctx, query.Request{
		Table:             schema.TableBookings,
		Action:            query.Update,
		Values:            []query.Record{{"status": schema.StatusCancelled}},
		Filters:           filters,
		ReturnWrittenRows: true,
		WantAtMostOneRow:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 {
		return nil, dataerr.Validation("booking %s cannot be cancelled", bookingID)
	}
	return resp.Rows[0], nil
}

func messageOf(err error) string {
	if info := dataerr.Normalize(err); info != nil {
		return info.Message
	}
	return ""
}

func sortedDates(dates map[string]int) []string {
	out := make([]string, len(dates))
	for date, i := range dates {
		out[i] = date
	}
	return out
}
