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

type LicenseRepository struct {
	pool *pgxpool.Pool
}

func NewLicenseRepository(pool *pgxpool.Pool) *LicenseRepository {
	return &LicenseRepository{pool: pool}
}

const licenseSelect = `
	SELECT l.id, l.customer_id, c.name, l.license_key, l.license_type,
	       l.max_users, l.max_companies, l.max_storage_gb, l.modules_enabled,
	       l.issued_at, l.valid_from, l.valid_until, l.status,
	       l.activated_at, l.last_check, l.hardware_fingerprint,
	       l.deployment_domain, l.deployment_ip, l.notes, l.created_by,
	       l.created_at, l.updated_at
	FROM licenses l
	JOIN customers c ON c.id = l.customer_id`

// Create inserts a new license. A duplicate key surfaces as a unique violation.
func (r *LicenseRepository) Create(ctx context.Context, l *models.License) error {
	modules := l.ModulesEnabled
	if modules == nil {
		modules = []string{}
	}
	query := `
		INSERT INTO licenses (
			id, customer_id, license_key, license_type,
			max_users, max_companies, max_storage_gb, modules_enabled,
			issued_at, valid_from, valid_until, status, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		l.ID, l.CustomerID, l.LicenseKey, l.LicenseType,
		l.MaxUsers, l.MaxCompanies, l.MaxStorageGB, modules,
		l.IssuedAt, l.ValidFrom, l.ValidUntil, l.Status, l.Notes, l.CreatedBy,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

// GetByID retrieves a license by primary key
func (r *LicenseRepository) GetByID(ctx context.Context, id string) (*models.License, error) {
	return scanLicense(conn(ctx, r.pool).QueryRow(ctx, licenseSelect+` WHERE l.id = $1`, id))
}

// GetByKey retrieves a license by its key
func (r *LicenseRepository) GetByKey(ctx context.Context, key string) (*models.License, error) {
	return scanLicense(conn(ctx, r.pool).QueryRow(ctx, licenseSelect+` WHERE l.license_key = $1`, key))
}

// List returns licenses matching f, newest first
func (r *LicenseRepository) List(ctx context.Context, f models.LicenseFilter) ([]*models.License, error) {
	query := licenseSelect + `
		WHERE ($1 = '' OR l.license_key ILIKE $1 ESCAPE '\' OR c.name ILIKE $1 ESCAPE '\' OR l.deployment_domain ILIKE $1 ESCAPE '\')
		  AND ($2 = '' OR l.status = $2)
		  AND ($3 = '' OR l.customer_id::text = $3)
		  AND ($4 = '' OR l.license_type = $4)
		ORDER BY l.created_at DESC
		LIMIT $5
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, likePattern(f.Search), f.Status, f.CustomerID, f.LicenseType, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()
	return scanLicenses(rows)
}

// ListByCustomer returns every license of a customer
func (r *LicenseRepository) ListByCustomer(ctx context.Context, customerID string) ([]*models.License, error) {
	return r.List(ctx, models.LicenseFilter{CustomerID: customerID})
}

// ListOverdue returns active licenses whose validity ended before now
func (r *LicenseRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.License, error) {
	query := licenseSelect + `
		WHERE l.status = 'active' AND l.valid_until < $1
		ORDER BY l.valid_until
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue licenses: %w", err)
	}
	defer rows.Close()
	return scanLicenses(rows)
}

// UpdateState persists a status transition of l, guarded on the status the
// caller observed. ErrStaleState means someone else moved it first.
func (r *LicenseRepository) UpdateState(ctx context.Context, l *models.License, fromStatus string) error {
	query := `
		UPDATE licenses SET
			status = $3, activated_at = $4, hardware_fingerprint = $5,
			deployment_domain = $6, deployment_ip = $7, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		l.ID, fromStatus, l.Status, l.ActivatedAt, l.HardwareFingerprint,
		l.DeploymentDomain, l.DeploymentIP,
	).Scan(&l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleState
		}
		return fmt.Errorf("update license state: %w", err)
	}
	return nil
}

// TouchLastCheck records a validation check-in time
func (r *LicenseRepository) TouchLastCheck(ctx context.Context, id string, at time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `UPDATE licenses SET last_check = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update license last_check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a license and its usage and logs
func (r *LicenseRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts licenses by status
func (r *LicenseRepository) Stats(ctx context.Context) (*models.LicenseStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(*) FILTER (WHERE status = 'expired'),
		       COUNT(*) FILTER (WHERE status = 'revoked'),
		       COUNT(*) FILTER (WHERE status = 'pending')
		FROM licenses
	`
	s := &models.LicenseStats{}
	err := conn(ctx, r.pool).QueryRow(ctx, query).Scan(&s.Total, &s.Active, &s.Expired, &s.Revoked, &s.Pending)
	if err != nil {
		return nil, fmt.Errorf("license stats: %w", err)
	}
	return s, nil
}

func scanLicense(row pgx.Row) (*models.License, error) {
	l := &models.License{}
	err := row.Scan(
		&l.ID, &l.CustomerID, &l.CustomerName, &l.LicenseKey, &l.LicenseType,
		&l.MaxUsers, &l.MaxCompanies, &l.MaxStorageGB, &l.ModulesEnabled,
		&l.IssuedAt, &l.ValidFrom, &l.ValidUntil, &l.Status,
		&l.ActivatedAt, &l.LastCheck, &l.HardwareFingerprint,
		&l.DeploymentDomain, &l.DeploymentIP, &l.Notes, &l.CreatedBy,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan license: %w", err)
	}
	return l, nil
}

func scanLicenses(rows pgx.Rows) ([]*models.License, error) {
	var licenses []*models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, l)
	}
	return licenses, rows.Err()
}

// ==================== License usage ====================

type LicenseUsageRepository struct {
	pool *pgxpool.Pool
}

func NewLicenseUsageRepository(pool *pgxpool.Pool) *LicenseUsageRepository {
	return &LicenseUsageRepository{pool: pool}
}

// Create appends a usage check-in
func (r *LicenseUsageRepository) Create(ctx context.Context, u *models.LicenseUsage) error {
	query := `
		INSERT INTO license_usage (
			id, license_id, current_users, current_companies, current_storage_gb,
			access_ip, user_agent, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		u.ID, u.LicenseID, u.CurrentUsers, u.CurrentCompanies, u.CurrentStorageGB,
		u.AccessIP, u.UserAgent, u.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert license usage: %w", err)
	}
	return nil
}

// List returns the newest check-ins, optionally for one license
func (r *LicenseUsageRepository) List(ctx context.Context, licenseID string) ([]*models.LicenseUsage, error) {
	query := `
		SELECT u.id, u.license_id, u.current_users, u.current_companies, u.current_storage_gb,
		       u.access_ip, u.user_agent, u.checked_at, l.license_key, c.name
		FROM license_usage u
		JOIN licenses l ON l.id = u.license_id
		JOIN customers c ON c.id = l.customer_id
		WHERE ($1 = '' OR u.license_id::text = $1)
		ORDER BY u.checked_at DESC
		LIMIT $2
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, licenseID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list license usage: %w", err)
	}
	defer rows.Close()

	var usage []*models.LicenseUsage
	for rows.Next() {
		u := &models.LicenseUsage{}
		err := rows.Scan(
			&u.ID, &u.LicenseID, &u.CurrentUsers, &u.CurrentCompanies, &u.CurrentStorageGB,
			&u.AccessIP, &u.UserAgent, &u.CheckedAt, &u.LicenseKey, &u.CustomerName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan license usage row: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// ==================== License logs ====================

type LicenseLogRepository struct {
	pool *pgxpool.Pool
}

func NewLicenseLogRepository(pool *pgxpool.Pool) *LicenseLogRepository {
	return &LicenseLogRepository{pool: pool}
}

// Create appends a license log entry
func (r *LicenseLogRepository) Create(ctx context.Context, l *models.LicenseLog) error {
	query := `
		INSERT INTO license_logs (id, license_id, action, message, ip_address, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		l.ID, l.LicenseID, l.Action, l.Message, l.IPAddress, l.CreatedBy,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert license log: %w", err)
	}
	return nil
}

// List returns the newest log entries matching f
func (r *LicenseLogRepository) List(ctx context.Context, f models.LicenseLogFilter) ([]*models.LicenseLog, error) {
	query := `
		SELECT g.id, g.license_id, g.action, g.message, g.ip_address,
		       g.created_by, COALESCE(u.username, ''), g.created_at, l.license_key
		FROM license_logs g
		JOIN licenses l ON l.id = g.license_id
		LEFT JOIN users u ON u.id = g.created_by
		WHERE ($1 = '' OR g.license_id::text = $1)
		  AND ($2 = '' OR g.action = $2)
		ORDER BY g.created_at DESC
		LIMIT $3
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, f.LicenseID, f.Action, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list license logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.LicenseLog
	for rows.Next() {
		l := &models.LicenseLog{}
		err := rows.Scan(
			&l.ID, &l.LicenseID, &l.Action, &l.Message, &l.IPAddress,
			&l.CreatedBy, &l.CreatedByName, &l.CreatedAt, &l.LicenseKey,
		)
		if err != nil {
			return nil, fmt.Errorf("scan license log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
