// Package executor runs parameterized statements against the store.
//
// Transport failures (dropped connections, refused dials, server restarts)
// are retried with exponential backoff after rebuilding the connection.
// Server-side errors such as syntax or constraint violations are returned
// on the first attempt. Rows come back normalized: integers as int64,
// decimals as float64, JSON columns decoded, dates as "2006-01-02" and
// timestamps as "2006-01-02 15:04:05" UTC.
package executor
