// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()
	return InitSchema(ctx, db.conn)
}

// InitSchema creates the proxies table, its id sequence and indexes.
// It is idempotent. Stores call it directly in tests against an in-memory
// connection.
func InitSchema(ctx context.Context, conn *sql.DB) error {
	for _, query := range schemaQueries() {
		if _, err := conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// DuckDB has no AUTOINCREMENT; ids come from a sequence. time_add holds unix
// seconds. VARCHAR lengths are not enforced by DuckDB, so IPv6 addresses fit.
func schemaQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS proxies_id_seq`,
		`CREATE TABLE IF NOT EXISTS proxies (
			id INTEGER PRIMARY KEY DEFAULT nextval('proxies_id_seq'),
			client_id INTEGER NOT NULL,
			service VARCHAR(64) NOT NULL,
			ip VARCHAR(15) NOT NULL,
			time_add BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proxies_service ON proxies(service)`,
		`CREATE INDEX IF NOT EXISTS idx_proxies_ip ON proxies(ip)`,
	}
}
