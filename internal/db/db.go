// internal/db/db.go
package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Connect opens the database named by url. A postgres:// URL selects the
// Postgres driver; anything else is treated as a SQLite path or DSN.
func Connect(url string) (*sqlx.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	conn, err := sqlx.Connect(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == "sqlite" {
		// Serialize access; modernc's driver is not safe for concurrent writers.
		conn.SetMaxOpenConns(1)
	}

	log.Info().Str("driver", driver).Msg("connected to database")
	return conn, nil
}
