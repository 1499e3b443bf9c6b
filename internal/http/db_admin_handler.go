package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// dbQuerier is the subset of pgxpool.Pool the browser needs.
type dbQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBAdminHandler lets admins browse the service schema read-only
type DBAdminHandler struct {
	db     dbQuerier
	schema string
}

func NewDBAdminHandler(db dbQuerier, schema string) *DBAdminHandler {
	if schema == "" {
		schema = "public"
	}
	return &DBAdminHandler{db: db, schema: schema}
}

// sensitivePatterns mark columns whose values never leave the server.
// helm_values embeds the Odoo admin password.
var sensitivePatterns = []string{"password", "hash", "secret", "token", "helm_values"}

func isSensitiveColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitivePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

type tableInfo struct {
	Name     string `json:"name"`
	RowCount int    `json:"row_count"`
}

type columnInfo struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Nullable  bool    `json:"nullable"`
	Default   *string `json:"default,omitempty"`
	MaxLength *int    `json:"max_length,omitempty"`
	IsPrimary bool    `json:"is_primary"`
	Sensitive bool    `json:"sensitive"`
}

// ListTables GET /admin/db/tables
func (h *DBAdminHandler) ListTables(c *gin.Context) {
	rows, err := h.db.Query(c.Request.Context(), `
		SELECT t.table_name, COALESCE(s.n_live_tup, 0)::int AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_stat_user_tables s
		  ON s.schemaname = t.table_schema AND s.relname = t.table_name
		WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
	`, h.schema)
	if err != nil {
		writeError(c, fmt.Errorf("list tables: %w", err))
		return
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tableInfo, error) {
		var t tableInfo
		err := row.Scan(&t.Name, &t.RowCount)
		return t, err
	})
	if err != nil {
		writeError(c, fmt.Errorf("scan tables: %w", err))
		return
	}
	if tables == nil {
		tables = []tableInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// GetTableSchema GET /admin/db/tables/:table/schema
func (h *DBAdminHandler) GetTableSchema(c *gin.Context) {
	ctx := c.Request.Context()
	table, ok := h.requireTable(c)
	if !ok {
		return
	}

	pks, err := h.primaryKeys(ctx, table)
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := h.db.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, h.schema, table)
	if err != nil {
		writeError(c, fmt.Errorf("read columns: %w", err))
		return
	}
	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (columnInfo, error) {
		var col columnInfo
		if err := row.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &col.MaxLength); err != nil {
			return col, err
		}
		col.IsPrimary = pks[col.Name]
		col.Sensitive = isSensitiveColumn(col.Name)
		return col, nil
	})
	if err != nil {
		writeError(c, fmt.Errorf("scan columns: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"table": table, "columns": columns})
}

// QueryRows GET /admin/db/tables/:table/rows?page=1&page_size=50&search=&sort_by=&sort_order=desc
func (h *DBAdminHandler) QueryRows(c *gin.Context) {
	ctx := c.Request.Context()
	table, ok := h.requireTable(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	search := c.Query("search")
	sortBy := c.Query("sort_by")
	sortOrder := strings.ToLower(c.DefaultQuery("sort_order", "desc"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	cols, err := h.columns(ctx, table)
	if err != nil {
		writeError(c, err)
		return
	}
	if sortBy != "" && !hasColumn(cols, sortBy) {
		writeError(c, apperrors.NewFieldValidationError("请求参数无效", map[string]string{"sort_by": "未知的列"}))
		return
	}

	qualified := pgx.Identifier{h.schema, table}.Sanitize()
	var where string
	var args []any
	if search != "" {
		var conds []string
		for _, col := range cols {
			// masked columns are not searchable, or their content would leak
			if col.searchable && !isSensitiveColumn(col.name) {
				conds = append(conds, fmt.Sprintf("%s::text ILIKE '%%' || $1 || '%%'", pgx.Identifier{col.name}.Sanitize()))
			}
		}
		if len(conds) > 0 {
			where = "WHERE " + strings.Join(conds, " OR ")
			args = append(args, search)
		}
	}

	var total int
	if err := h.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s %s", qualified, where), args...).Scan(&total); err != nil {
		writeError(c, fmt.Errorf("count rows: %w", err))
		return
	}

	var order string
	if sortBy != "" {
		order = fmt.Sprintf("ORDER BY %s %s", pgx.Identifier{sortBy}.Sanitize(), sortOrder)
	}
	query := fmt.Sprintf("SELECT * FROM %s %s %s LIMIT $%d OFFSET $%d", qualified, where, order, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := h.db.Query(ctx, query, args...)
	if err != nil {
		writeError(c, fmt.Errorf("query rows: %w", err))
		return
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (map[string]any, error) {
		return maskedRow(row.FieldDescriptions(), row)
	})
	if err != nil {
		writeError(c, fmt.Errorf("scan rows: %w", err))
		return
	}
	if results == nil {
		results = []map[string]any{}
	}

	c.JSON(http.StatusOK, gin.H{
		"table":     table,
		"rows":      results,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func maskedRow(fields []pgconn.FieldDescription, row pgx.CollectableRow) (map[string]any, error) {
	values, err := row.Values()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for i, fd := range fields {
		if isSensitiveColumn(fd.Name) {
			out[fd.Name] = "***"
			continue
		}
		out[fd.Name] = formatValue(values[i])
	}
	return out, nil
}

// formatValue renders pgx uuid values ([16]byte) as canonical strings.
func formatValue(v any) any {
	if b, ok := v.([16]byte); ok {
		return uuid.UUID(b).String()
	}
	return v
}

// requireTable resolves :table against the schema and answers 404 for
// anything else. Only names that pass this check reach a query string.
func (h *DBAdminHandler) requireTable(c *gin.Context) (string, bool) {
	table := c.Param("table")
	var exists bool
	err := h.db.QueryRow(c.Request.Context(), `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)
	`, h.schema, table).Scan(&exists)
	if err != nil {
		writeError(c, fmt.Errorf("check table: %w", err))
		return "", false
	}
	if !exists {
		writeError(c, apperrors.NewNotFoundError(fmt.Sprintf("表 %q 不存在", table)))
		return "", false
	}
	return table, true
}

func (h *DBAdminHandler) primaryKeys(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := h.db.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
	`, h.schema, table)
	if err != nil {
		return nil, fmt.Errorf("read primary keys: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan primary keys: %w", err)
	}
	pks := make(map[string]bool, len(names))
	for _, n := range names {
		pks[n] = true
	}
	return pks, nil
}

type colMeta struct {
	name       string
	searchable bool
}

func (h *DBAdminHandler) columns(ctx context.Context, table string) ([]colMeta, error) {
	rows, err := h.db.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, h.schema, table)
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (colMeta, error) {
		var name, dtype string
		if err := row.Scan(&name, &dtype); err != nil {
			return colMeta{}, err
		}
		searchable := strings.Contains(dtype, "char") || strings.Contains(dtype, "text") || dtype == "uuid"
		return colMeta{name: name, searchable: searchable}, nil
	})
}

func hasColumn(cols []colMeta, name string) bool {
	for _, c := range cols {
		if c.name == name {
			return true
		}
	}
	return false
}
