package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userSelect = `
	SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
	       u.is_active, u.is_superuser, u.date_joined, u.last_login,
	       p.role, p.phone, p.department, p.position,
	       p.can_manage_customers, p.can_manage_environments,
	       p.can_view_logs, p.can_generate_licenses,
	       p.created_at, p.updated_at
	FROM users u
	JOIN user_profiles p ON p.user_id = u.id`

// Create inserts the account and its profile. Run it inside a transaction.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	q := conn(ctx, r.pool)

	err := q.QueryRow(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, password_hash, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING date_joined
	`, u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsActive, u.IsSuperuser,
	).Scan(&u.DateJoined)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	p := &u.Profile
	p.UserID = u.ID
	err = q.QueryRow(ctx, `
		INSERT INTO user_profiles (
			user_id, role, phone, department, position,
			can_manage_customers, can_manage_environments, can_view_logs, can_generate_licenses
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.UserID, p.Role, p.Phone, p.Department, p.Position,
		p.CanManageCustomers, p.CanManageEnvironments, p.CanViewLogs, p.CanGenerateLicenses,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user profile: %w", err)
	}
	return nil
}

// GetByID retrieves an account with its profile
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

// GetByUsername retrieves an account for login
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, userSelect+` WHERE u.username = $1`, username))
}

// List returns accounts matching f, newest first
func (r *UserRepository) List(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
	query := userSelect + `
		WHERE ($1 = '' OR u.username ILIKE $1 ESCAPE '\' OR u.email ILIKE $1 ESCAPE '\'
		       OR u.first_name ILIKE $1 ESCAPE '\' OR u.last_name ILIKE $1 ESCAPE '\')
		  AND ($2 = '' OR p.role = $2)
		ORDER BY u.date_joined DESC
		LIMIT $3
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, likePattern(f.Search), f.Role, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile writes the role, contact fields and flags of a profile
func (r *UserRepository) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	query := `
		UPDATE user_profiles SET
			role = $2, phone = $3, department = $4, position = $5,
			can_manage_customers = $6, can_manage_environments = $7,
			can_view_logs = $8, can_generate_licenses = $9, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		p.UserID, p.Role, p.Phone, p.Department, p.Position,
		p.CanManageCustomers, p.CanManageEnvironments, p.CanViewLogs, p.CanGenerateLicenses,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last_login: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	p := &u.Profile
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsActive, &u.IsSuperuser, &u.DateJoined, &u.LastLogin,
		&p.Role, &p.Phone, &p.Department, &p.Position,
		&p.CanManageCustomers, &p.CanManageEnvironments,
		&p.CanViewLogs, &p.CanGenerateLicenses,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	p.UserID = u.ID
	return u, nil
}
