package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"famfin/internal/core"
)

// EnsureUser inserts the user when the id is unknown and reports whether a row
// was created. Existing users keep their stored profile.
func (r *SQLiteRepository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.Email, u.Name, r.timestamp())
	if err != nil {
		return core.User{}, false, fmt.Errorf("ensure user: %w", err)
	}
	n, _ := res.RowsAffected()

	stored, err := r.GetUser(ctx, u.ID)
	if err != nil {
		return core.User{}, false, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	}
	return stored, n > 0, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, family_id, is_family_admin, created_at FROM users WHERE id = ?`, id)
	var (
		u        core.User
		familyID sql.NullInt64
		admin    int
		created  string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &familyID, &admin, &created); err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, translate(err))
	}
	u.FamilyID = intPtr(familyID)
	u.IsFamilyAdmin = admin == 1
	u.CreatedAt = parseTimestamp(created)
	return u, nil
}

// SetUserFamily attaches the user to a family, or detaches when familyID is nil.
func (r *SQLiteRepository) SetUserFamily(ctx context.Context, userID int64, familyID *int64, admin bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET family_id = ?, is_family_admin = ? WHERE id = ?`,
		nullInt(familyID), boolInt(admin), userID)
	if err != nil {
		return fmt.Errorf("set user family: %w", translate(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("set user family %d: %w", userID, err)
	}
	return nil
}

// CreateFamily creates the family and makes the creator its admin in one
// transaction.
func (r *SQLiteRepository) CreateFamily(ctx context.Context, name string, createdBy int64) (core.Family, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Family{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.timestamp()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO families (name, created_by, created_at) VALUES (?, ?, ?)`, name, createdBy, now)
	if err != nil {
		return core.Family{}, fmt.Errorf("create family: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Family{}, fmt.Errorf("create family: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET family_id = ?, is_family_admin = 1 WHERE id = ?`, id, createdBy); err != nil {
		return core.Family{}, fmt.Errorf("attach family creator: %w", translate(err))
	}
	if err := tx.Commit(); err != nil {
		return core.Family{}, fmt.Errorf("commit family: %w", err)
	}

	slog.InfoContext(ctx, "Family created", "family_id", id, "user_id", createdBy)
	return core.Family{ID: id, Name: name, CreatedBy: createdBy, CreatedAt: parseTimestamp(now)}, nil
}

func (r *SQLiteRepository) GetFamily(ctx context.Context, id int64) (core.Family, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM families WHERE id = ?`, id)
	var (
		f       core.Family
		created string
	)
	if err := row.Scan(&f.ID, &f.Name, &f.CreatedBy, &created); err != nil {
		return core.Family{}, fmt.Errorf("get family %d: %w", id, translate(err))
	}
	f.CreatedAt = parseTimestamp(created)
	return f, nil
}

const memberColumns = `id, family_id, name, role, icon, color, special_needs, user_id, created_at`

func scanMember(s rowScanner) (core.FamilyMember, error) {
	var (
		m       core.FamilyMember
		special int
		userID  sql.NullInt64
		created string
	)
	if err := s.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Role, &m.Icon, &m.Color, &special, &userID, &created); err != nil {
		return core.FamilyMember{}, err
	}
	m.SpecialNeeds = special == 1
	m.UserID = intPtr(userID)
	m.CreatedAt = parseTimestamp(created)
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, familyID int64) ([]core.FamilyMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM family_members WHERE family_id = ? ORDER BY id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id int64) (core.FamilyMember, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM family_members WHERE id = ?`, id))
	if err != nil {
		return core.FamilyMember{}, fmt.Errorf("get member %d: %w", id, translate(err))
	}
	return m, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.FamilyMember) (core.FamilyMember, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO family_members (family_id, name, role, icon, color, special_needs, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.FamilyID, m.Name, m.Role, m.Icon, m.Color, boolInt(m.SpecialNeeds), nullInt(m.UserID), now)
	if err != nil {
		return core.FamilyMember{}, fmt.Errorf("add member: %w", translate(err))
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return core.FamilyMember{}, fmt.Errorf("add member: %w", err)
	}
	m.CreatedAt = parseTimestamp(now)
	return m, nil
}

func (r *SQLiteRepository) UpdateMember(ctx context.Context, m core.FamilyMember) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE family_members SET name = ?, role = ?, icon = ?, color = ?, special_needs = ?
		 WHERE id = ? AND family_id = ?`,
		m.Name, m.Role, m.Icon, m.Color, boolInt(m.SpecialNeeds), m.ID, m.FamilyID)
	if err != nil {
		return fmt.Errorf("update member: %w", translate(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("update member %d: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteMember(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM family_members WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	return nil
}
