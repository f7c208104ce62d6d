// internal/config/database.go
package config

import (
	"fmt"
)

// DSN builds the postgres connection string. Timestamps are stored and
// compared in UTC, so the session timezone is pinned rather than left to
// the server default.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
