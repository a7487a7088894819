package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/licito/backend/model"
)

const userColumns = `id::text, name, email, password_hash, role, whatsapp, is_active, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var lastLogin sql.NullTime
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.WhatsApp,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, whatsapp, is_active, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.WhatsApp,
		u.IsActive, nullTime(u.LastLogin), u.CreatedAt, u.UpdatedAt,
	)
	return translate(err)
}

func (p *Postgres) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, whatsapp = $6,
		    is_active = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.WhatsApp, u.IsActive, u.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *Postgres) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

// usersByID loads the given users keyed by id
func (p *Postgres) usersByID(ctx context.Context, ids []string) (map[string]*model.User, error) {
	result := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result[u.ID] = u
	}
	return result, rows.Err()
}
