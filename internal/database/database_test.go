// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/proxyguard/internal/config"
)

func TestNew_InMemory(t *testing.T) {
	db, err := New(&config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	var id int64
	err = db.Conn().QueryRowContext(ctx,
		`INSERT INTO proxies (client_id, service, ip, time_add) VALUES (?, ?, ?, ?) RETURNING id`,
		1, "winmxunlimited", "127.0.0.2", 1700000000).Scan(&id)
	if err != nil {
		t.Fatalf("insert into proxies: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "proxyguard.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path, MaxMemory: "128MB", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening runs the idempotent schema again.
	db, err = New(&config.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	_ = db.Close()
}

func TestInitSchema_Idempotent(t *testing.T) {
	db, err := New(&config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := InitSchema(context.Background(), db.Conn()); err != nil {
		t.Errorf("second InitSchema() error = %v", err)
	}
}

func TestConnString(t *testing.T) {
	got := connString(&config.DatabaseConfig{Path: "/data/p.duckdb", MaxMemory: "256MB", Threads: 2})
	for _, want := range []string{"/data/p.duckdb?", "max_memory=256MB", "threads=2", "autoload_known_extensions=false"} {
		if !strings.Contains(got, want) {
			t.Errorf("connString() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(connString(&config.DatabaseConfig{}), "threads=") {
		t.Error("zero threads should use the DuckDB default")
	}
}
