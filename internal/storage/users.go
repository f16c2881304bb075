package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var userIDPattern = regexp.MustCompile(`^\d{6}$`)

// ValidUserID reports whether id is exactly six decimal digits.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func (s *Store) SelfUser(ctx context.Context) (UserRow, error) {
	if s == nil || s.db == nil {
		return UserRow{}, fmt.Errorf("db not initialized")
	}

	q := `SELECT id, name, about, phone, avatar, is_self, created_at_ms, updated_at_ms
		FROM users WHERE is_self = 1 LIMIT 1;`
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(q)))
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (UserRow, error) {
	if s == nil || s.db == nil {
		return UserRow{}, fmt.Errorf("db not initialized")
	}
	if !ValidUserID(userID) {
		return UserRow{}, ErrInvalidUserID
	}

	q := `SELECT id, name, about, phone, avatar, is_self, created_at_ms, updated_at_ms
		FROM users WHERE id = ?;`
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(q), userID))
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("db not initialized")
	}
	if !ValidUserID(userID) {
		return false, nil
	}

	q := `SELECT 1 FROM users WHERE id = ?;`
	var one int
	if err := s.db.QueryRowContext(ctx, s.rebind(q), userID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return one == 1, nil
}

// ListContacts returns every known user except the active one, in stable
// ID order.
func (s *Store) ListContacts(ctx context.Context) ([]UserRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("db not initialized")
	}

	q := `SELECT id, name, about, phone, avatar, is_self, created_at_ms, updated_at_ms
		FROM users WHERE is_self = 0 ORDER BY id ASC;`
	rows, err := s.db.QueryContext(ctx, s.rebind(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserRow
	for rows.Next() {
		u, err := scanUserFromRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// MergeProfile shallow-merges the non-nil patch fields into the active
// user, mirroring the Object.assign semantics of POST /api/profile.
func (s *Store) MergeProfile(ctx context.Context, patch ProfilePatch, nowMs int64) (UserRow, error) {
	if s == nil || s.db == nil {
		return UserRow{}, fmt.Errorf("db not initialized")
	}

	user, err := s.SelfUser(ctx)
	if err != nil {
		return UserRow{}, err
	}

	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.About != nil {
		user.About = *patch.About
	}
	if patch.Phone != nil {
		user.Phone = *patch.Phone
	}
	if patch.Avatar != nil {
		user.Avatar = patch.Avatar
	}

	var avatar sql.NullString
	if user.Avatar != nil {
		avatar = sql.NullString{String: *user.Avatar, Valid: true}
	}

	q := `UPDATE users SET name = ?, about = ?, phone = ?, avatar = ?, updated_at_ms = ? WHERE id = ?;`
	if _, err := s.db.ExecContext(ctx, s.rebind(q),
		user.Name, user.About, user.Phone, avatar, nowMs, user.ID,
	); err != nil {
		return UserRow{}, err
	}
	user.UpdatedAtMs = nowMs

	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row *sql.Row) (UserRow, error) {
	u, err := scanUserFromRows(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return UserRow{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return UserRow{}, err
	}
	return u, nil
}

func scanUserFromRows(row rowScanner) (UserRow, error) {
	var u UserRow
	var avatar sql.NullString
	var isSelf int
	if err := row.Scan(&u.ID, &u.Name, &u.About, &u.Phone, &avatar, &isSelf, &u.CreatedAtMs, &u.UpdatedAtMs); err != nil {
		return UserRow{}, err
	}
	if avatar.Valid {
		u.Avatar = &avatar.String
	}
	u.IsSelf = isSelf == 1
	return u, nil
}
