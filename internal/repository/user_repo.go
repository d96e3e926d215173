package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/model"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var hash *string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, err
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if isNoRows(err) {
		return model.User{}, notFound(model.ErrUserNotFound, fmt.Sprintf("User with id %d", id))
	}
	if err != nil {
		return model.User{}, translateError("find user by id", err)
	}
	return u, nil
}

func (r *UserRepository) FindByName(ctx context.Context, name string) (model.User, error) {
	name = strings.TrimSpace(name)
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = $1`, name))
	if isNoRows(err) {
		return model.User{}, notFound(model.ErrUserNotFound, fmt.Sprintf("User with name %s", name))
	}
	if err != nil {
		return model.User{}, translateError("find user by name", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if isNoRows(err) {
		return model.User{}, notFound(model.ErrUserNotFound, fmt.Sprintf("User with email %s", email))
	}
	if err != nil {
		return model.User{}, translateError("find user by email", err)
	}
	return u, nil
}

// Create inserts u and returns the stored row with its generated id. An empty
// PasswordHash is stored as NULL.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC()
	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING `+userColumns,
		u.Name, u.Email, nullableString(u.PasswordHash), u.Role, now))
	if err != nil {
		return model.User{}, translateError("create user", err)
	}
	return created, nil
}

// Update writes name, email, password hash and role of u.
func (r *UserRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	updated, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET name = $2, email = $3, password_hash = $4, role = $5, updated_at = $6
		 WHERE id = $1
		 RETURNING `+userColumns,
		u.ID, u.Name, u.Email, nullableString(u.PasswordHash), u.Role, time.Now().UTC()))
	if isNoRows(err) {
		return model.User{}, notFound(model.ErrUserNotFound, fmt.Sprintf("User with id %d", u.ID))
	}
	if err != nil {
		return model.User{}, translateError("update user", err)
	}
	return updated, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(model.ErrUserNotFound, fmt.Sprintf("User with id %d", id))
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, translateError("list users", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translateError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list users", err)
	}
	return users, nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
