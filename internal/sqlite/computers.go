package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

const (
	insertLabQuery = `INSERT INTO labs (name, created_at) VALUES (?, ?) RETURNING id`

	insertComputerQuery = `INSERT INTO computers (hostname, lab_id, is_online, last_seen_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

	selectComputerBase = `SELECT id, hostname, lab_id, is_online, last_seen_at, created_at, updated_at
FROM computers`

	setComputerOnlineQuery = `UPDATE computers
SET is_online = ?,
    last_seen_at = COALESCE(?, last_seen_at),
    updated_at = ?
WHERE id = ?`
)

// CreateLab inserts a lab and returns its id.
func (db *DB) CreateLab(ctx context.Context, name string) (models.LabID, error) {
	var id int64
	if err := db.writeDB.QueryRowContext(ctx, insertLabQuery, name, db.now()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert lab %q: %w", name, err)
	}
	return models.LabID(id), nil
}

// CreateComputer registers a computer.
func (db *DB) CreateComputer(ctx context.Context, computer *models.Computer) error {
	if computer == nil {
		return fmt.Errorf("computer payload is required")
	}
	now := db.now()
	var id int64
	err := db.writeDB.QueryRowContext(ctx, insertComputerQuery,
		computer.Hostname,
		nullableLabID(computer.LabID),
		boolToInt(computer.IsOnline),
		nullableTime(computer.LastSeenAt),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert computer %q: %w", computer.Hostname, err)
	}
	computer.ID = models.ComputerID(id)
	computer.CreatedAt = now
	computer.UpdatedAt = now
	return nil
}

// GetComputer fetches a computer by id.
func (db *DB) GetComputer(ctx context.Context, id models.ComputerID) (*models.Computer, error) {
	row := db.readDB.QueryRowContext(ctx, selectComputerBase+" WHERE id = ?", int64(id))
	computer, err := scanComputer(row)
	if err != nil {
		return nil, handleNotFoundError(err, fmt.Sprintf("getting computer id %d", id))
	}
	return computer, nil
}

// ListComputers returns every registered computer ordered by id.
func (db *DB) ListComputers(ctx context.Context) ([]*models.Computer, error) {
	rows, err := db.readDB.QueryContext(ctx, selectComputerBase+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list computers: %w", err)
	}
	defer rows.Close()

	var computers []*models.Computer
	for rows.Next() {
		computer, err := scanComputer(rows)
		if err != nil {
			return nil, err
		}
		computers = append(computers, computer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating computers: %w", err)
	}
	return computers, nil
}

// SetComputerOnline stores the online flag. lastSeen, when non-nil, replaces
// last_seen_at.
func (db *DB) SetComputerOnline(ctx context.Context, id models.ComputerID, online bool, lastSeen *time.Time) error {
	res, err := db.writeDB.ExecContext(ctx, setComputerOnlineQuery, boolToInt(online), nullableTime(lastSeen), db.now(), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update computer %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanComputer(s scanner) (*models.Computer, error) {
	var (
		id         int64
		hostname   string
		labID      sql.NullInt64
		isOnline   int64
		lastSeenAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := s.Scan(&id, &hostname, &labID, &isOnline, &lastSeenAt, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan computer: %w", err)
	}
	return &models.Computer{
		ID:         models.ComputerID(id),
		Hostname:   hostname,
		LabID:      labIDPtr(labID),
		IsOnline:   isOnline == 1,
		LastSeenAt: timePtr(lastSeenAt),
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  updatedAt.UTC(),
	}, nil
}
