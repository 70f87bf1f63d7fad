package rpc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lumastudio/dataplane/v1/compiler"
	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/dataerr"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/observability"
	"github.com/lumastudio/dataplane/v1/query"
	"github.com/lumastudio/dataplane/v1/schema"
)

// Procedure names of the closed catalog.
const (
	ProcGetPublicFeed       = "get_public_feed"
	ProcGetMyWall           = "get_my_wall"
	ProcGetUnavailableDates = "get_unavailable_dates"
	ProcToggleLike          = "toggle_like"
	ProcToggleWallPin       = "toggle_wall_pin"
	ProcIncrementPhotoView  = "increment_photo_view"
	ProcCreateBookings      = "create_bookings"
	ProcCancelBooking       = "cancel_booking"
	ProcGetAdminStats       = "get_admin_stats"
	ProcRecountTagUsage     = "recount_tag_usage"
	ProcRunMaintenance      = "run_maintenance"
)

// Domain events.
const (
	EventBookingCreated       = "booking.created"
	EventMaintenanceCompleted = "maintenance.completed"
)

const dateLayout = "2006-01-02"

// Access is the minimum caller a procedure accepts.
type Access int

const (
	AccessAnyone Access = iota
	AccessUser
	AccessAdmin
)

// Logger is the logging contract of the dispatcher.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

type procedure struct {
	access Access
	run    func(ctx context.Context, id identity.Identity, args Args) (any, error)
}

// Dispatcher runs the named multi-statement procedures. Each procedure is
// a sequence of independent statements; there is no enclosing transaction.
type Dispatcher struct {
	compiler *compiler.Compiler
	cfg      Config
	assets   AssetStore
	events   EventPublisher
	views    ViewCache
	logger   Logger
	observer observability.Observer
	now      func() time.Time
	catalog  map[string]procedure
}

// NewDispatcher returns a dispatcher issuing its statements through c.
// logger may be nil.
func NewDispatcher(c *compiler.Compiler, cfg Config, logger Logger) *Dispatcher {
	d := &Dispatcher{
		compiler: c,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
	d.catalog = map[string]procedure{
		ProcGetPublicFeed:       {access: AccessAnyone, run: d.getPublicFeed},
		ProcGetMyWall:           {access: AccessUser, run: d.getMyWall},
		ProcGetUnavailableDates: {access: AccessAnyone, run: d.getUnavailableDates},
		ProcToggleLike:          {access: AccessUser, run: d.toggleLike},
		ProcToggleWallPin:       {access: AccessUser, run: d.toggleWallPin},
		ProcIncrementPhotoView:  {access: AccessAnyone, run: d.incrementPhotoView},
		ProcCreateBookings:      {access: AccessUser, run: d.createBookings},
		ProcCancelBooking:       {access: AccessUser, run: d.cancelBooking},
		ProcGetAdminStats:       {access: AccessAdmin, run: d.getAdminStats},
		ProcRecountTagUsage:     {access: AccessAdmin, run: d.recountTagUsage},
		ProcRunMaintenance:      {access: AccessAdmin, run: d.runMaintenance},
	}
	return d
}

// WithAssetStore sets the collaborator that deletes stored assets.
func (d *Dispatcher) WithAssetStore(assets AssetStore) *Dispatcher {
	d.assets = assets
	return d
}

// WithEventPublisher sets the publisher of domain events.
func (d *Dispatcher) WithEventPublisher(events EventPublisher) *Dispatcher {
	d.events = events
	return d
}

// WithViewCache sets the cache consulted before counting a photo view.
func (d *Dispatcher) WithViewCache(views ViewCache) *Dispatcher {
	d.views = views
	return d
}

// WithObserver attaches an observer notified once per call.
func (d *Dispatcher) WithObserver(observer observability.Observer) *Dispatcher {
	d.observer = observer
	return d
}

// WithClock replaces the clock used for date rules.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Procedures returns the catalog in sorted order.
func (d *Dispatcher) Procedures() []string {
	names := make([]string, 0, len(d.catalog))
	for name := range d.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs procedure name for caller id. Unlisted names are rejected with
// UNKNOWN_PROCEDURE; every procedure checks the caller before touching the
// store.
func (d *Dispatcher) Call(ctx context.Context, id identity.Identity, name string, args map[string]any) (any, error) {
	start := time.Now()

	p, ok := d.catalog[name]
	if !ok {
		err := dataerr.UnknownProcedure(name)
		d.observeOperation(name, time.Since(start), err)
		return nil, err
	}
	if err := authorize(p.access, id, name); err != nil {
		d.observeOperation(name, time.Since(start), err)
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := p.run(ctx, id, Args(args))
	d.observeOperation(name, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func authorize(access Access, id identity.Identity, name string) error {
	switch access {
	case AccessUser:
		if id.IsPrivileged() || (id.Role == identity.User && id.IsAuthenticated()) {
			return nil
		}
		return dataerr.Unauthorized("%s requires a signed-in user", name)
	case AccessAdmin:
		if id.IsPrivileged() {
			return nil
		}
		if !id.IsAuthenticated() {
			return dataerr.Unauthorized("%s requires a signed-in administrator", name)
		}
		return dataerr.PermissionDenied("%s is restricted to administrators", name)
	}
	return nil
}

// requireUser returns the caller's user id for procedures that act on
// behalf of a person.
func requireUser(id identity.Identity) (string, error) {
	if !id.IsAuthenticated() {
		return "", dataerr.Unauthorized("a signed-in user is required")
	}
	return id.UserID(), nil
}

func (d *Dispatcher) today() time.Time {
	now := d.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (d *Dispatcher) table(name string) (*schema.Table, error) {
	return d.compiler.Registry().Metadata(name)
}

func (d *Dispatcher) execute(ctx context.Context, req query.Request) (*compiler.Response, error) {
	return d.compiler.Execute(ctx, req)
}

func (d *Dispatcher) run(ctx context.Context, b *compiler.Builder, sql string, mode database.Mode) (*executor.Result, error) {
	return d.compiler.Runner().Run(ctx, b.Statement(sql, mode))
}

// count returns the number of rows of table matching filters.
func (d *Dispatcher) count(ctx context.Context, table string, filters ...query.Filter) (int64, error) {
	meta, err := d.table(table)
	if err != nil {
		return 0, err
	}
	b := d.compiler.NewBuilder()
	where, err := b.Where(meta, filters)
	if err != nil {
		return 0, err
	}
	res, err := d.run(ctx, b, fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s%s", b.Quote("total"), b.Quote(meta.Name), where), database.ModeQuery)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return compiler.ToInt64(res.Rows[0]["total"]), nil
}

// publish emits a domain event. Failures are logged and never returned.
func (d *Dispatcher) publish(ctx context.Context, event string, payload any) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, event, payload); err != nil {
		d.logWarn("Failed to publish domain event", err, map[string]interface{}{"event": event})
	}
}

func (d *Dispatcher) logInfo(msg string, fields map[string]interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, nil, fields)
	}
}

func (d *Dispatcher) logWarn(msg string, err error, fields map[string]interface{}) {
	if d.logger != nil {
		d.logger.Warn(msg, err, fields)
	}
}
