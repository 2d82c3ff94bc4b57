package sqlite

import (
	"context"
	"fmt"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

const (
	insertUserQuery = `INSERT INTO users (name, email, created_at) VALUES (?, ?, ?) RETURNING id`

	insertRoleQuery = `INSERT INTO roles (name) VALUES (?)
ON CONFLICT(name) DO UPDATE SET name = excluded.name
RETURNING id`

	grantRolePermissionQuery = `INSERT OR IGNORE INTO role_permissions (role_id, permission) VALUES (?, ?)`

	assignRoleQuery = `INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`

	grantUserPermissionQuery = `INSERT OR IGNORE INTO user_permissions (user_id, permission) VALUES (?, ?)`

	// UNION already removes duplicates; a user holding the permission both
	// directly and through several roles appears once.
	listUserIDsWithPermissionQuery = `SELECT ur.user_id
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
WHERE rp.permission = ?
UNION
SELECT up.user_id
FROM user_permissions up
WHERE up.permission = ?
ORDER BY 1`
)

// CreateUser inserts a user.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user payload is required")
	}
	now := db.now()
	var id int64
	if err := db.writeDB.QueryRowContext(ctx, insertUserQuery, user.Name, user.Email, now).Scan(&id); err != nil {
		return fmt.Errorf("failed to insert user %q: %w", user.Email, err)
	}
	user.ID = models.UserID(id)
	user.CreatedAt = now
	return nil
}

// EnsureRole returns the id of the named role, creating it when missing.
func (db *DB) EnsureRole(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := db.writeDB.QueryRowContext(ctx, insertRoleQuery, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure role %q: %w", name, err)
	}
	return id, nil
}

// GrantRolePermission adds a permission to a role.
func (db *DB) GrantRolePermission(ctx context.Context, roleID int64, permission string) error {
	if _, err := db.writeDB.ExecContext(ctx, grantRolePermissionQuery, roleID, permission); err != nil {
		return fmt.Errorf("failed to grant %q to role %d: %w", permission, roleID, err)
	}
	return nil
}

// AssignRole gives a user a role.
func (db *DB) AssignRole(ctx context.Context, userID models.UserID, roleID int64) error {
	if _, err := db.writeDB.ExecContext(ctx, assignRoleQuery, int64(userID), roleID); err != nil {
		return fmt.Errorf("failed to assign role %d to user %d: %w", roleID, userID, err)
	}
	return nil
}

// GrantUserPermission grants a permission directly to a user.
func (db *DB) GrantUserPermission(ctx context.Context, userID models.UserID, permission string) error {
	if _, err := db.writeDB.ExecContext(ctx, grantUserPermissionQuery, int64(userID), permission); err != nil {
		return fmt.Errorf("failed to grant %q to user %d: %w", permission, userID, err)
	}
	return nil
}

// ListUserIDsWithPermission returns the distinct users holding permission
// through a role or a direct grant, in ascending order.
func (db *DB) ListUserIDsWithPermission(ctx context.Context, permission string) ([]models.UserID, error) {
	rows, err := db.readDB.QueryContext(ctx, listUserIDsWithPermissionQuery, permission, permission)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with %q: %w", permission, err)
	}
	defer rows.Close()

	var ids []models.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, models.UserID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return ids, nil
}
