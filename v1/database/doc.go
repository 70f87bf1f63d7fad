// Package database provides the SQL channel the data plane executes
// statements through.
//
// The channel accepts SQL text with @name placeholders plus a flat
// parameter map and returns the raw result shape of the driver. It supports
// MySQL-compatible stores (MySQL, MariaDB, TiDB) through gorm.io/driver/mysql
// and PostgreSQL through gorm.io/driver/postgres.
//
// # Usage
//
//	db, err := database.NewDB(database.Config{
//	    Driver: database.DriverMySQL,
//	    Connection: database.Connection{
//	        Host: "localhost", Port: "3306",
//	        User: "app", Password: "secret", DbName: "studio",
//	    },
//	})
//	res, err := db.Execute(ctx, database.Statement{
//	    SQL:    "SELECT `id` FROM `tags` WHERE `name` = @p1",
//	    Params: map[string]any{"p1": "sunset"},
//	})
//
// # Connection handling
//
// The first Execute opens the pool. Reset throws the pool away and opens a
// new one; the executor calls it before each retry of a transient failure.
// With the FXModule, MonitorConnection pings every 10 seconds and
// RetryConnection rebuilds the pool when a ping fails.
//
// # Dialects
//
// Dialect hides quoting and JSON containment differences. Placeholders must
// be followed by a space, comma, closing parenthesis or end of text, which
// is what gorm's named-parameter parser expects.
//
// Multi-row inserts in ModeInsert report the first generated id. On
// PostgreSQL it is derived from lastval() and the affected count, which
// assumes the sequence was not advanced concurrently within the statement.
package database
