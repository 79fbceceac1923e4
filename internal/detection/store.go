// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package detection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/proxyguard/internal/database/query"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

const proxiesTable = "proxies"

// DuckDBStore implements Recorder and the statistics queries on the
// proxies table. The schema is created by database.InitSchema.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed store.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// SaveDetection appends record and sets its ID.
func (s *DuckDBStore) SaveDetection(ctx context.Context, record *models.DetectionRecord) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", proxiesTable, time.Since(start), err) }()

	if record.TimeAdd.IsZero() {
		record.TimeAdd = time.Now().Truncate(time.Second)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO proxies (client_id, service, ip, time_add) VALUES (?, ?, ?, ?) RETURNING id`,
		record.ClientID, record.Service, record.IP, record.TimeAdd.Unix(),
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to save detection: %w", err)
	}
	return nil
}

// DistinctIPCount returns the number of distinct detected addresses.
func (s *DuckDBStore) DistinctIPCount(ctx context.Context) (total int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count_distinct", proxiesTable, time.Since(start), err) }()

	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT ip) AS total FROM proxies`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count detected addresses: %w", err)
	}
	return total, nil
}

// CountByService returns detections per service ordered by service name.
func (s *DuckDBStore) CountByService(ctx context.Context) (counts []models.ServiceCount, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count_by_service", proxiesTable, time.Since(start), err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT service, COUNT(*) AS total FROM proxies GROUP BY service ORDER BY service ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections by service: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.ServiceCount
		if err = rows.Scan(&c.Service, &c.Total); err != nil {
			return nil, fmt.Errorf("failed to scan service count: %w", err)
		}
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Stats combines DistinctIPCount and CountByService.
func (s *DuckDBStore) Stats(ctx context.Context) (*models.DetectionStats, error) {
	total, err := s.DistinctIPCount(ctx)
	if err != nil {
		return nil, err
	}
	services, err := s.CountByService(ctx)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []models.ServiceCount{}
	}
	return &models.DetectionStats{DistinctIPs: total, Services: services}, nil
}

// ListFilter selects detection records. Zero fields do not filter.
type ListFilter struct {
	Services []string
	IP       string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

// DefaultListLimit caps ListDetections when no limit is given.
const DefaultListLimit = 100

// ListDetections returns matching records, newest first.
func (s *DuckDBStore) ListDetections(ctx context.Context, filter ListFilter) (records []models.DetectionRecord, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", proxiesTable, time.Since(start), err) }()

	where, args := query.NewWhereBuilder().
		AddIn("service", filter.Services).
		AddEquals("ip", filter.IP).
		AddTimeRange("time_add", filter.Since, filter.Until).
		BuildWithPrefix()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, service, ip, time_add FROM proxies `+where+
			` ORDER BY time_add DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	records = []models.DetectionRecord{}
	for rows.Next() {
		var r models.DetectionRecord
		var added int64
		if err = rows.Scan(&r.ID, &r.ClientID, &r.Service, &r.IP, &added); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		r.TimeAdd = time.Unix(added, 0).UTC()
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
