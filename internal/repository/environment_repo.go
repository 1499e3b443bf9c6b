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

type EnvironmentRepository struct {
	pool *pgxpool.Pool
}

func NewEnvironmentRepository(pool *pgxpool.Pool) *EnvironmentRepository {
	return &EnvironmentRepository{pool: pool}
}

// specColumns is the column order of models.EnvironmentSpec; specArgs and
// specDest must follow it.
const specColumns = `
	release_name, namespace, domain, admin_password, odoo_version, workers, log_level,
	git_ssh_secret, git_odoo_repository, git_odoo_ref, git_customer_addons,
	storage_class, storage_size, storage_auto_expand, storage_expand_threshold,
	storage_expand_size, storage_max_size,
	db_enabled, db_version, db_instances, db_storage_size,
	db_cpu_request, db_memory_request, db_cpu_limit, db_memory_limit,
	external_db_enabled, external_db_host, external_db_port, external_db_name, external_db_user,
	ingress_enabled, ingress_class, ingress_path, tls_enabled, tls_secret_name,
	cpu_request, memory_request, cpu_limit, memory_limit,
	limit_request, limit_memory_hard, limit_memory_soft, proxy_mode, list_db, db_filter`

const specColumnCount = 45

func specArgs(s *models.EnvironmentSpec) []any {
	addons := s.GitCustomerAddons
	if addons == nil {
		addons = []models.GitAddon{}
	}
	return []any{
		s.ReleaseName, s.Namespace, s.Domain, s.AdminPassword, s.OdooVersion, s.Workers, s.LogLevel,
		s.GitSSHSecret, s.GitOdooRepository, s.GitOdooRef, addons,
		s.StorageClass, s.StorageSize, s.StorageAutoExpand, s.StorageExpandThreshold,
		s.StorageExpandSize, s.StorageMaxSize,
		s.DBEnabled, s.DBVersion, s.DBInstances, s.DBStorageSize,
		s.DBCPURequest, s.DBMemoryRequest, s.DBCPULimit, s.DBMemoryLimit,
		s.ExternalDBEnabled, s.ExternalDBHost, s.ExternalDBPort, s.ExternalDBName, s.ExternalDBUser,
		s.IngressEnabled, s.IngressClass, s.IngressPath, s.TLSEnabled, s.TLSSecretName,
		s.CPURequest, s.MemoryRequest, s.CPULimit, s.MemoryLimit,
		s.LimitRequest, s.LimitMemoryHard, s.LimitMemorySoft, s.ProxyMode, s.ListDB, s.DBFilter,
	}
}

func specDest(s *models.EnvironmentSpec) []any {
	return []any{
		&s.ReleaseName, &s.Namespace, &s.Domain, &s.AdminPassword, &s.OdooVersion, &s.Workers, &s.LogLevel,
		&s.GitSSHSecret, &s.GitOdooRepository, &s.GitOdooRef, &s.GitCustomerAddons,
		&s.StorageClass, &s.StorageSize, &s.StorageAutoExpand, &s.StorageExpandThreshold,
		&s.StorageExpandSize, &s.StorageMaxSize,
		&s.DBEnabled, &s.DBVersion, &s.DBInstances, &s.DBStorageSize,
		&s.DBCPURequest, &s.DBMemoryRequest, &s.DBCPULimit, &s.DBMemoryLimit,
		&s.ExternalDBEnabled, &s.ExternalDBHost, &s.ExternalDBPort, &s.ExternalDBName, &s.ExternalDBUser,
		&s.IngressEnabled, &s.IngressClass, &s.IngressPath, &s.TLSEnabled, &s.TLSSecretName,
		&s.CPURequest, &s.MemoryRequest, &s.CPULimit, &s.MemoryLimit,
		&s.LimitRequest, &s.LimitMemoryHard, &s.LimitMemorySoft, &s.ProxyMode, &s.ListDB, &s.DBFilter,
	}
}

// placeholders returns "$from, ..., $(from+n-1)".
func placeholders(from, n int) string {
	out := make([]byte, 0, n*5)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = fmt.Appendf(out, "$%d", from+i)
	}
	return string(out)
}

const environmentSelect = `
	SELECT env.id, env.customer_id, c.customer_id, c.name,
	       ` + specColumns + `,
	       env.status, env.helm_values, env.last_health_check, env.deployed_at,
	       env.created_by, env.created_at, env.updated_at
	FROM environments env
	JOIN customers c ON c.id = env.customer_id`

// Create inserts a new environment with its synthesized values
func (r *EnvironmentRepository) Create(ctx context.Context, e *models.Environment) error {
	query := `
		INSERT INTO environments (id, customer_id, status, helm_values, deployed_at, created_by, ` + specColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, ` + placeholders(7, specColumnCount) + `)
		RETURNING created_at, updated_at
	`
	args := append([]any{e.ID, e.CustomerID, e.Status, e.HelmValues, e.DeployedAt, e.CreatedBy}, specArgs(&e.EnvironmentSpec)...)
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("insert environment: %w", err)
	}
	return nil
}

// GetByID retrieves an environment with its customer identity
func (r *EnvironmentRepository) GetByID(ctx context.Context, id string) (*models.Environment, error) {
	return scanEnvironment(conn(ctx, r.pool).QueryRow(ctx, environmentSelect+` WHERE env.id = $1`, id))
}

// List returns environments matching f, newest first
func (r *EnvironmentRepository) List(ctx context.Context, f models.EnvironmentFilter) ([]*models.Environment, error) {
	query := environmentSelect + `
		WHERE ($1 = '' OR env.release_name ILIKE $1 ESCAPE '\' OR env.domain ILIKE $1 ESCAPE '\' OR c.name ILIKE $1 ESCAPE '\')
		  AND ($2 = '' OR env.status = $2)
		  AND ($3 = '' OR env.customer_id::text = $3)
		ORDER BY env.created_at DESC
		LIMIT $4
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, likePattern(f.Search), f.Status, f.CustomerID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	var envs []*models.Environment
	for rows.Next() {
		e, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		envs = append(envs, e)
	}
	return envs, rows.Err()
}

// Update rewrites the configuration and the values document
func (r *EnvironmentRepository) Update(ctx context.Context, e *models.Environment) error {
	query := `
		UPDATE environments SET
			(customer_id, helm_values, ` + specColumns + `) = ($2, $3, ` + placeholders(4, specColumnCount) + `),
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	args := append([]any{e.ID, e.CustomerID, e.HelmValues}, specArgs(&e.EnvironmentSpec)...)
	err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update environment: %w", err)
	}
	return nil
}

// UpdateStatus sets the runtime status; a non-nil checkedAt also stamps
// last_health_check.
func (r *EnvironmentRepository) UpdateStatus(ctx context.Context, id, status string, checkedAt *time.Time) error {
	query := `
		UPDATE environments
		SET status = $2, last_health_check = COALESCE($3, last_health_check), updated_at = NOW()
		WHERE id = $1
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, status, checkedAt)
	if err != nil {
		return fmt.Errorf("update environment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an environment and its logs
func (r *EnvironmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM environments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete environment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts environments by status
func (r *EnvironmentRepository) Stats(ctx context.Context) (*models.EnvironmentStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'running'),
		       COUNT(*) FILTER (WHERE status = 'stopped'),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COUNT(*) FILTER (WHERE status = 'pending')
		FROM environments
	`
	s := &models.EnvironmentStats{}
	err := conn(ctx, r.pool).QueryRow(ctx, query).Scan(&s.Total, &s.Running, &s.Stopped, &s.Error, &s.Pending)
	if err != nil {
		return nil, fmt.Errorf("environment stats: %w", err)
	}
	return s, nil
}

func scanEnvironment(row pgx.Row) (*models.Environment, error) {
	e := &models.Environment{}
	dest := []any{&e.ID, &e.CustomerID, &e.CustomerCode, &e.CustomerName}
	dest = append(dest, specDest(&e.EnvironmentSpec)...)
	dest = append(dest,
		&e.Status, &e.HelmValues, &e.LastHealthCheck, &e.DeployedAt,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan environment: %w", err)
	}
	return e, nil
}

// ==================== Environment logs ====================

type EnvironmentLogRepository struct {
	pool *pgxpool.Pool
}

func NewEnvironmentLogRepository(pool *pgxpool.Pool) *EnvironmentLogRepository {
	return &EnvironmentLogRepository{pool: pool}
}

// Create appends an environment log entry
func (r *EnvironmentLogRepository) Create(ctx context.Context, l *models.EnvironmentLog) error {
	query := `
		INSERT INTO environment_logs (id, environment_id, log_type, message, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		l.ID, l.EnvironmentID, l.LogType, l.Message, l.Status, l.CreatedBy,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert environment log: %w", err)
	}
	return nil
}

// List returns the newest log entries matching f
func (r *EnvironmentLogRepository) List(ctx context.Context, f models.EnvironmentLogFilter) ([]*models.EnvironmentLog, error) {
	query := `
		SELECT l.id, l.environment_id, l.log_type, l.message, l.status,
		       l.created_by, COALESCE(u.username, ''), l.created_at
		FROM environment_logs l
		LEFT JOIN users u ON u.id = l.created_by
		WHERE ($1 = '' OR l.environment_id::text = $1)
		  AND ($2 = '' OR l.log_type = $2)
		ORDER BY l.created_at DESC
		LIMIT $3
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, f.EnvironmentID, f.LogType, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list environment logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.EnvironmentLog
	for rows.Next() {
		l := &models.EnvironmentLog{}
		err := rows.Scan(
			&l.ID, &l.EnvironmentID, &l.LogType, &l.Message, &l.Status,
			&l.CreatedBy, &l.CreatedByName, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan environment log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
