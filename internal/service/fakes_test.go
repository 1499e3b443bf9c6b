package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/repository"
)

type fakeTx struct {
	calls int
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// ---- customers ----

type memCustomers struct {
	mu   sync.Mutex
	rows map[string]*models.Customer
}

func newMemCustomers(cs ...*models.Customer) *memCustomers {
	m := &memCustomers{rows: map[string]*models.Customer{}}
	for _, c := range cs {
		m.rows[c.ID] = c
	}
	return m
}

func (m *memCustomers) Create(_ context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.CustomerID == c.CustomerID {
			return uniqueViolation("customers_customer_id_key")
		}
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCustomers) GetByID(_ context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCustomers) List(_ context.Context, f models.CustomerFilter) ([]*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Customer
	for _, c := range m.rows {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCustomers) Update(_ context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCustomers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memCustomers) Stats(_ context.Context) (*models.CustomerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.CustomerStats{Total: len(m.rows)}
	for _, c := range m.rows {
		if c.Status == models.CustomerStatusActive {
			s.Active++
		}
	}
	return s, nil
}

// ---- environments ----

type memEnvironments struct {
	mu   sync.Mutex
	rows map[string]*models.Environment
}

func newMemEnvironments() *memEnvironments {
	return &memEnvironments{rows: map[string]*models.Environment{}}
}

func (m *memEnvironments) Create(_ context.Context, e *models.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ReleaseName == e.ReleaseName && existing.Namespace == e.Namespace {
			return uniqueViolation("environments_release_namespace_key")
		}
	}
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memEnvironments) GetByID(_ context.Context, id string) (*models.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEnvironments) List(_ context.Context, _ models.EnvironmentFilter) ([]*models.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Environment
	for _, e := range m.rows {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memEnvironments) Update(_ context.Context, e *models.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.rows {
		if id != e.ID && existing.ReleaseName == e.ReleaseName && existing.Namespace == e.Namespace {
			return uniqueViolation("environments_release_namespace_key")
		}
	}
	if _, ok := m.rows[e.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memEnvironments) UpdateStatus(_ context.Context, id, status string, checkedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	if checkedAt != nil {
		e.LastHealthCheck = checkedAt
	}
	return nil
}

func (m *memEnvironments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memEnvironments) Stats(_ context.Context) (*models.EnvironmentStats, error) {
	return &models.EnvironmentStats{Total: len(m.rows)}, nil
}

type memEnvLogs struct {
	entries []*models.EnvironmentLog
}

func (m *memEnvLogs) Create(_ context.Context, l *models.EnvironmentLog) error {
	m.entries = append(m.entries, l)
	return nil
}

func (m *memEnvLogs) List(_ context.Context, f models.EnvironmentLogFilter) ([]*models.EnvironmentLog, error) {
	var out []*models.EnvironmentLog
	for _, l := range m.entries {
		if f.LogType != "" && l.LogType != f.LogType {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// ---- licenses ----

type memLicenses struct {
	mu sync.Mutex
	// createErrs are returned, in order, by the next Create calls
	createErrs  []error
	createCalls int
	rows        map[string]*models.License
}

func newMemLicenses() *memLicenses {
	return &memLicenses{rows: map[string]*models.License{}}
}

func (m *memLicenses) put(l *models.License) {
	cp := *l
	m.rows[l.ID] = &cp
}

func (m *memLicenses) Create(_ context.Context, l *models.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	for _, existing := range m.rows {
		if existing.LicenseKey == l.LicenseKey {
			return uniqueViolation(licenseKeyConstraint)
		}
	}
	m.put(l)
	return nil
}

func (m *memLicenses) GetByID(_ context.Context, id string) (*models.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLicenses) GetByKey(_ context.Context, key string) (*models.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.rows {
		if l.LicenseKey == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memLicenses) List(_ context.Context, f models.LicenseFilter) ([]*models.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.License
	for _, l := range m.rows {
		if f.CustomerID != "" && l.CustomerID != f.CustomerID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLicenses) ListByCustomer(ctx context.Context, customerID string) ([]*models.License, error) {
	return m.List(ctx, models.LicenseFilter{CustomerID: customerID})
}

func (m *memLicenses) ListOverdue(_ context.Context, now time.Time) ([]*models.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.License
	for _, l := range m.rows {
		if l.Status == models.LicenseStatusActive && l.ValidUntil.Before(now) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLicenses) UpdateState(_ context.Context, l *models.License, fromStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[l.ID]
	if !ok || existing.Status != fromStatus {
		return repository.ErrStaleState
	}
	m.put(l)
	return nil
}

func (m *memLicenses) TouchLastCheck(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.LastCheck = &at
	return nil
}

func (m *memLicenses) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memLicenses) Stats(_ context.Context) (*models.LicenseStats, error) {
	return &models.LicenseStats{Total: len(m.rows)}, nil
}

type memUsage struct {
	entries []*models.LicenseUsage
}

func (m *memUsage) Create(_ context.Context, u *models.LicenseUsage) error {
	m.entries = append(m.entries, u)
	return nil
}

func (m *memUsage) List(_ context.Context, licenseID string) ([]*models.LicenseUsage, error) {
	var out []*models.LicenseUsage
	for _, u := range m.entries {
		if licenseID == "" || u.LicenseID == licenseID {
			out = append(out, u)
		}
	}
	return out, nil
}

type memLicenseLogs struct {
	entries []*models.LicenseLog
}

func (m *memLicenseLogs) Create(_ context.Context, l *models.LicenseLog) error {
	m.entries = append(m.entries, l)
	return nil
}

func (m *memLicenseLogs) List(_ context.Context, f models.LicenseLogFilter) ([]*models.LicenseLog, error) {
	var out []*models.LicenseLog
	for _, l := range m.entries {
		if f.LicenseID != "" && l.LicenseID != f.LicenseID {
			continue
		}
		if f.Action != "" && l.Action != f.Action {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memLicenseLogs) actions() []string {
	var out []string
	for _, l := range m.entries {
		out = append(out, l.Action)
	}
	return out
}

// ---- users & activity ----

type memUsers struct {
	mu   sync.Mutex
	rows map[string]*models.User
}

func newMemUsers(us ...*models.User) *memUsers {
	m := &memUsers{rows: map[string]*models.User{}}
	for _, u := range us {
		m.rows[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Username == u.Username {
			return uniqueViolation("users_username_key")
		}
	}
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) List(_ context.Context, _ models.UserFilter) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.rows {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, p *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[p.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Profile = *p
	return nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

type memActivity struct {
	entries []*models.ActivityLog
}

func (m *memActivity) Create(_ context.Context, e *models.ActivityLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memActivity) List(_ context.Context, f models.ActivityLogFilter) ([]*models.ActivityLog, error) {
	var out []*models.ActivityLog
	for _, e := range m.entries {
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memActivity) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*models.ActivityLog
	var n int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

func (m *memActivity) actions() []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func uniqueViolation(constraint string) error {
	return fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraint})
}
