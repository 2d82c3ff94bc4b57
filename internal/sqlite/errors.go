package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = models.ErrNotFound

// ErrOpenAlertExists is returned when inserting a second open alert for the
// same rule and computer.
var ErrOpenAlertExists = errors.New("an open alert already exists for this rule and computer")

// ErrAlertNotOpen is returned when acknowledging or resolving an alert that is
// no longer in the expected state.
var ErrAlertNotOpen = errors.New("alert is not open")

// handleNotFoundError maps sql.ErrNoRows to ErrNotFound and wraps anything else.
func handleNotFoundError(err error, context string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", context, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scanner interface {
	Scan(dest ...any) error
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableLabID(id *models.LabID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func labIDPtr(v sql.NullInt64) *models.LabID {
	if !v.Valid {
		return nil
	}
	id := models.LabID(v.Int64)
	return &id
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
