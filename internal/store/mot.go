package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const motColumns = "id, vehicle_id, test_number, completed_at, expires_at, odometer, result, advisories, failures, created_at"

func scanMotTest(scanner rowScanner) (MotTest, error) {
	var (
		t          MotTest
		testNumber sql.NullString
		completed  sql.NullString
		expires    sql.NullString
		advisories sql.NullString
		failures   sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&t.ID,
		&t.VehicleID,
		&testNumber,
		&completed,
		&expires,
		&t.Odometer,
		&t.Result,
		&advisories,
		&failures,
		&createdRaw,
	); err != nil {
		return MotTest{}, err
	}
	t.TestNumber = testNumber.String
	t.CompletedAt = timeValue(completed)
	t.ExpiresAt = timePtr(expires)
	t.Advisories = decodeList(advisories)
	t.Failures = decodeList(failures)
	t.CreatedAt = timeValue(createdRaw)
	return t, nil
}

// SaveMotHistory inserts a batch of tests for a vehicle and stamps the history
// marker in one transaction. When the vehicle already has stored tests the
// batch is dropped and only the marker is refreshed. It returns the number of
// rows inserted.
func (s *Store) SaveMotHistory(ctx context.Context, vehicleID int64, tests []MotTest, at time.Time) (int, error) {
	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		var existing int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM mot_tests WHERE vehicle_id = ?", vehicleID).Scan(&existing); err != nil {
			return fmt.Errorf("count mot tests: %w", err)
		}
		now := s.timestamp()
		if existing == 0 {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO mot_tests (vehicle_id, test_number, completed_at, expires_at, odometer, result, advisories, failures, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("prepare mot insert: %w", err)
			}
			defer stmt.Close()
			for _, test := range tests {
				odometer := test.Odometer
				if odometer < 0 {
					odometer = 0
				}
				if _, err := stmt.ExecContext(ctx,
					vehicleID,
					nullableString(test.TestNumber),
					formatTime(test.CompletedAt),
					nullableTime(test.ExpiresAt),
					odometer,
					test.Result,
					encodeList(test.Advisories),
					encodeList(test.Failures),
					formatTime(now),
				); err != nil {
					return fmt.Errorf("insert mot test: %w", err)
				}
				inserted++
			}
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE vehicles SET history_checked_at = ?, updated_at = ? WHERE id = ?",
			nullableTime(&at), formatTime(now), vehicleID,
		)
		if err != nil {
			return fmt.Errorf("mark history checked: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("mark history checked: vehicle %d not found", vehicleID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// MotTests returns a vehicle's tests, newest first.
func (s *Store) MotTests(ctx context.Context, vehicleID int64) ([]MotTest, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+motColumns+" FROM mot_tests WHERE vehicle_id = ? ORDER BY completed_at DESC, id DESC",
		vehicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mot tests: %w", err)
	}
	defer rows.Close()

	var tests []MotTest
	for rows.Next() {
		test, err := scanMotTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mot test: %w", err)
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

// CountMotTests returns how many tests are stored for a vehicle.
func (s *Store) CountMotTests(ctx context.Context, vehicleID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM mot_tests WHERE vehicle_id = ?", vehicleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mot tests: %w", err)
	}
	return count, nil
}
