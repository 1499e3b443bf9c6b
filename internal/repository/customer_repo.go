package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `
	c.id, c.customer_id, c.name, c.company, c.contact_email, c.contact_phone,
	c.deployment_type, c.status, c.contract_start_date, c.contract_end_date,
	c.notes, c.created_by, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM environments e WHERE e.customer_id = c.id)`

// Create inserts a new customer
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (
			id, customer_id, name, company, contact_email, contact_phone,
			deployment_type, status, contract_start_date, contract_end_date,
			notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		c.ID, c.CustomerID, c.Name, c.Company, c.ContactEmail, c.ContactPhone,
		c.DeploymentType, c.Status, c.ContractStartDate, c.ContractEndDate,
		c.Notes, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetByID retrieves a customer by primary key
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers c WHERE c.id = $1`
	return scanCustomer(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// List returns customers matching f, newest first
func (r *CustomerRepository) List(ctx context.Context, f models.CustomerFilter) ([]*models.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers c
		WHERE ($1 = '' OR c.customer_id ILIKE $1 ESCAPE '\' OR c.name ILIKE $1 ESCAPE '\'
		       OR c.company ILIKE $1 ESCAPE '\' OR c.contact_email ILIKE $1 ESCAPE '\')
		  AND ($2 = '' OR c.status = $2)
		  AND ($3 = '' OR c.deployment_type = $3)
		ORDER BY c.created_at DESC
		LIMIT $4
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, likePattern(f.Search), f.Status, f.DeploymentType, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// Update writes all editable fields of c
func (r *CustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers SET
			customer_id = $2, name = $3, company = $4, contact_email = $5,
			contact_phone = $6, deployment_type = $7, status = $8,
			contract_start_date = $9, contract_end_date = $10, notes = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		c.ID, c.CustomerID, c.Name, c.Company, c.ContactEmail,
		c.ContactPhone, c.DeploymentType, c.Status,
		c.ContractStartDate, c.ContractEndDate, c.Notes,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// Delete removes a customer; environments and licenses cascade
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts customers by status and deployment type
func (r *CustomerRepository) Stats(ctx context.Context) (*models.CustomerStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(*) FILTER (WHERE deployment_type = 'online'),
		       COUNT(*) FILTER (WHERE deployment_type = 'offline'),
		       COUNT(*) FILTER (WHERE status = 'trial'),
		       COUNT(*) FILTER (WHERE status = 'expired')
		FROM customers
	`
	s := &models.CustomerStats{}
	err := conn(ctx, r.pool).QueryRow(ctx, query).Scan(&s.Total, &s.Active, &s.Online, &s.Offline, &s.Trial, &s.Expired)
	if err != nil {
		return nil, fmt.Errorf("customer stats: %w", err)
	}
	return s, nil
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	c := &models.Customer{}
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.Name, &c.Company, &c.ContactEmail, &c.ContactPhone,
		&c.DeploymentType, &c.Status, &c.ContractStartDate, &c.ContractEndDate,
		&c.Notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&c.EnvironmentsCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}
