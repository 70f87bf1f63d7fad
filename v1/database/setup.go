package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Logger is the logging contract of this package.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// DB is the gorm-backed SQL channel.
//
// The connection is built lazily on the first statement and can be rebuilt
// wholesale with Reset. The active *gorm.DB pointer lives in an atomic
// pointer so statements never block on a reconnect in progress.
type DB struct {
	cfg     Config
	dialect Dialect
	logger  Logger

	client    atomic.Pointer[gorm.DB]
	connectMu sync.Mutex

	shutdownSignal  chan struct{}
	retryChanSignal chan error

	closeRetryChanOnce sync.Once
	closeShutdownOnce  sync.Once
}

// NewDB validates cfg and returns a channel that connects on first use.
func NewDB(cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.Connection.Host == "" {
		return nil, fmt.Errorf("database host cannot be empty")
	}

	return &DB{
		cfg:             cfg,
		dialect:         dialect,
		shutdownSignal:  make(chan struct{}),
		retryChanSignal: make(chan error, 1),
	}, nil
}

// WithLogger attaches a logger for connection lifecycle events.
func (d *DB) WithLogger(logger Logger) *DB {
	d.logger = logger
	return d
}

// Dialect returns the SQL dialect of the configured driver.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Gorm returns the current connection, connecting if necessary.
func (d *DB) Gorm() (*gorm.DB, error) {
	return d.conn()
}

func (d *DB) conn() (*gorm.DB, error) {
	if c := d.client.Load(); c != nil {
		return c, nil
	}

	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	if c := d.client.Load(); c != nil {
		return c, nil
	}

	c, err := connect(d.dialect, d.cfg)
	if err != nil {
		return nil, err
	}
	d.client.Store(c)
	d.logInfo("Connected to database", map[string]interface{}{"driver": string(d.dialect)})
	return c, nil
}

// Reset closes the current connection pool and opens a fresh one.
func (d *DB) Reset(ctx context.Context) error {
	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	if old := d.client.Swap(nil); old != nil {
		if sqlDB, err := old.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := connect(d.dialect, d.cfg)
	if err != nil {
		d.logWarn("Database reconnect failed, next statement will retry", err, nil)
		return err
	}
	d.client.Store(c)
	d.logInfo("Rebuilt database connection", nil)
	return nil
}

// Execute runs stmt on the current connection.
func (d *DB) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	if stmt.Mode == ModeQuery {
		return d.query(ctx, db, stmt)
	}
	return d.exec(ctx, db, stmt)
}

func (d *DB) query(ctx context.Context, db *gorm.DB, stmt Statement) (*Result, error) {
	rows, err := raw(db.WithContext(ctx), stmt).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	res := &Result{Columns: make([]Column, len(types))}
	for i, ct := range types {
		res.Columns[i] = Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		res.Rows = append(res.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// exec pins a single session so that the insert id read back belongs to
// the statement that produced it.
func (d *DB) exec(ctx context.Context, db *gorm.DB, stmt Statement) (*Result, error) {
	res := &Result{}

	err := db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		var out *gorm.DB
		if len(stmt.Params) == 0 {
			out = tx.Exec(stmt.SQL)
		} else {
			out = tx.Exec(stmt.SQL, stmt.Params)
		}
		if out.Error != nil {
			return out.Error
		}
		res.RowsAffected = out.RowsAffected

		if stmt.Mode != ModeInsert || out.RowsAffected == 0 {
			return nil
		}

		var id int64
		if err := tx.Raw(d.dialect.lastInsertIDQuery()).Scan(&id).Error; err != nil {
			return fmt.Errorf("failed to read insert id: %w", err)
		}
		res.LastInsertID = d.dialect.firstInsertID(id, out.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func raw(db *gorm.DB, stmt Statement) *gorm.DB {
	if len(stmt.Params) == 0 {
		return db.Raw(stmt.SQL)
	}
	return db.Raw(stmt.SQL, stmt.Params)
}

// connect opens the connection for the dialect and configures the pool.
func connect(dialect Dialect, cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case Postgres:
		dialector = postgres.Open(postgresDSN(cfg.Connection))
	default:
		dialector = mysql.Open(mysqlDSN(cfg.Connection))
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	databaseInstance, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s database instance: %w", dialect, err)
	}

	maxOpen := cfg.ConnectionDetails.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 50
	}
	maxIdle := cfg.ConnectionDetails.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 25
	}
	maxLifetime := cfg.ConnectionDetails.ConnMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = 1 * time.Minute
	}

	databaseInstance.SetMaxOpenConns(maxOpen)
	databaseInstance.SetMaxIdleConns(maxIdle)
	databaseInstance.SetConnMaxLifetime(maxLifetime)

	return database, nil
}

func mysqlDSN(c Connection) string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	loc := c.Loc
	if loc == "" {
		loc = "UTC"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=%s",
		c.User, c.Password, c.Host, c.Port, c.DbName, charset, loc)
}

func postgresDSN(c Connection) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DbName, sslMode)
}

// RetryConnection waits for failure signals from MonitorConnection and
// reconnects until it succeeds or shutdown is requested.
//
// It implements two nested loops:
// - The outer loop waits for retry signals
// - The inner loop attempts reconnection until successful
func (d *DB) RetryConnection(ctx context.Context) {
outerLoop:
	for {
		select {
		case <-d.shutdownSignal:
			d.logInfo("Stopping RetryConnection loop due to shutdown signal", nil)
			return
		case <-ctx.Done():
			return
		case _, ok := <-d.retryChanSignal:
			if !ok {
				return
			}
		innerLoop:
			for {
				select {
				case <-d.shutdownSignal:
					return
				case <-ctx.Done():
					return
				default:
					if err := d.Reset(ctx); err != nil {
						d.logError("Database reconnection failed", err, nil)
						time.Sleep(time.Second)
						continue innerLoop
					}
					continue outerLoop
				}
			}
		}
	}
}

// MonitorConnection pings the database every 10 seconds and signals
// RetryConnection on failure. A channel that has not connected yet is
// left alone.
func (d *DB) MonitorConnection(ctx context.Context) {
	defer d.closeRetryChanOnce.Do(func() {
		close(d.retryChanSignal)
	})

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdownSignal:
			d.logInfo("Stopping MonitorConnection loop due to shutdown signal", nil)
			return
		case <-ticker.C:
			if err := d.healthCheck(); err != nil {
				select {
				case d.retryChanSignal <- err:
				default:
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *DB) healthCheck() error {
	dbConn := d.client.Load()
	if dbConn == nil {
		return nil
	}

	sqlDB, err := dbConn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance during health check: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed during health check: %w", err)
	}
	return nil
}

// GracefulShutdown stops the monitor loops and closes the pool.
func (d *DB) GracefulShutdown() error {
	d.closeShutdownOnce.Do(func() {
		close(d.shutdownSignal)
	})

	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	old := d.client.Swap(nil)
	if old == nil {
		return nil
	}
	sqlDB, err := old.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

func (d *DB) logInfo(msg string, fields map[string]interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, nil, fields)
	}
}

func (d *DB) logWarn(msg string, err error, fields map[string]interface{}) {
	if d.logger != nil {
		d.logger.Warn(msg, err, fields)
	}
}

func (d *DB) logError(msg string, err error, fields map[string]interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, err, fields)
	}
}
