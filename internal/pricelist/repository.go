package pricelist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centralpricelist/pricelist/internal/platform/db"
	"github.com/centralpricelist/pricelist/internal/pricing"
)

// Repository persists records in the central_pricelist table.
type Repository interface {
	Upsert(ctx context.Context, rec ProductRecord) (ProductRecord, error)
	List(ctx context.Context, filter ListFilter) ([]ProductRecord, int, error)
	Stats(ctx context.Context) (CatalogStats, error)
	Delete(ctx context.Context, ids []string) (int64, error)
	Export(ctx context.Context, filter ExportFilter) ([]ProductRecord, error)
}

// ListFilter narrows the paginated listing.
type ListFilter struct {
	Page       int
	Limit      int
	Supplier   string
	CategoryID *int
	MinPrice   *float64
	MaxPrice   *float64
	Search     string
	SortBy     string
	SortDir    string
}

// ExportFilter narrows an export.
type ExportFilter struct {
	Supplier   string
	CategoryID *int
}

// CatalogStats summarises the stored catalog.
type CatalogStats struct {
	TotalProducts int `json:"total_products"`
	Suppliers     int `json:"suppliers"`
	Categories    int `json:"categories"`
}

const recordColumns = `product_id, name, description, model_number, category_id, supplier, source_file, source_sheet,
	cost_excl_vat, cost_incl_vat, retail_excl_vat, retail_incl_vat, markup_percentage, price_type,
	currency, confidence_score, processing_notes, created_at, updated_at`

// Schema creates the table on first start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS central_pricelist (
		product_id        VARCHAR(50) PRIMARY KEY,
		name              VARCHAR(500) NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		model_number      VARCHAR(200) NOT NULL DEFAULT '',
		category_id       INTEGER NOT NULL DEFAULT 1,
		supplier          VARCHAR(100) NOT NULL,
		source_file       VARCHAR(200) NOT NULL DEFAULT '',
		source_sheet      VARCHAR(200) NOT NULL DEFAULT '',
		price             NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		cost_excl_vat     NUMERIC(12,2) NOT NULL CHECK (cost_excl_vat >= 0),
		cost_incl_vat     NUMERIC(12,2) NOT NULL CHECK (cost_incl_vat >= 0),
		retail_excl_vat   NUMERIC(12,2) NOT NULL CHECK (retail_excl_vat >= 0),
		retail_incl_vat   NUMERIC(12,2) NOT NULL CHECK (retail_incl_vat >= 0),
		markup_percentage NUMERIC(8,2) NOT NULL,
		price_type        VARCHAR(20) NOT NULL,
		currency          VARCHAR(5) NOT NULL DEFAULT 'ZAR',
		confidence_score  NUMERIC(3,2),
		processing_notes  TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_central_pricelist_supplier ON central_pricelist(supplier)`,
	`CREATE INDEX IF NOT EXISTS idx_central_pricelist_category ON central_pricelist(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_central_pricelist_updated ON central_pricelist(updated_at)`,
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// EnsureSchema applies Schema in one transaction.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range Schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("pricelist: ensure schema: %w", err)
			}
		}
		return nil
	})
}

func (r *repository) Upsert(ctx context.Context, rec ProductRecord) (ProductRecord, error) {
	query := `INSERT INTO central_pricelist (` + recordColumns + `, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (product_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			model_number = EXCLUDED.model_number,
			category_id = EXCLUDED.category_id,
			supplier = EXCLUDED.supplier,
			source_file = EXCLUDED.source_file,
			source_sheet = EXCLUDED.source_sheet,
			price = EXCLUDED.price,
			cost_excl_vat = EXCLUDED.cost_excl_vat,
			cost_incl_vat = EXCLUDED.cost_incl_vat,
			retail_excl_vat = EXCLUDED.retail_excl_vat,
			retail_incl_vat = EXCLUDED.retail_incl_vat,
			markup_percentage = EXCLUDED.markup_percentage,
			price_type = EXCLUDED.price_type,
			currency = EXCLUDED.currency,
			confidence_score = EXCLUDED.confidence_score,
			processing_notes = EXCLUDED.processing_notes,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`
	p := rec.Prices
	err := r.pool.QueryRow(ctx, query,
		rec.ProductID, rec.Name, rec.Description, rec.ModelNumber, rec.CategoryID, rec.Supplier, rec.SourceFile, rec.SourceSheet,
		p.CostExclVAT, p.CostInclVAT, p.RetailExclVAT, p.RetailInclVAT, p.MarkupPercentage, string(p.DetectedPriceType),
		rec.Currency, rec.Confidence, rec.ProcessingNotes, rec.CreatedAt, rec.UpdatedAt, rec.Price(),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return ProductRecord{}, classifyError(err)
	}
	return rec, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]ProductRecord, int, error) {
	where, args := filter.where()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM central_pricelist`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM central_pricelist` + where + ` ORDER BY ` + sortOrder(filter.SortBy, filter.SortDir)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		offset := (filter.Page - 1) * filter.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	records, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repository) Stats(ctx context.Context) (CatalogStats, error) {
	var s CatalogStats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT supplier), COUNT(DISTINCT category_id) FROM central_pricelist`).
		Scan(&s.TotalProducts, &s.Suppliers, &s.Categories)
	return s, err
}

func (r *repository) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM central_pricelist WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) Export(ctx context.Context, filter ExportFilter) ([]ProductRecord, error) {
	lf := ListFilter{Supplier: filter.Supplier, CategoryID: filter.CategoryID}
	where, args := lf.where()
	return r.query(ctx, `SELECT `+recordColumns+` FROM central_pricelist`+where+` ORDER BY supplier ASC, name ASC`, args...)
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]ProductRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductRecord
	for rows.Next() {
		var rec ProductRecord
		var priceType string
		var confidence *float64
		err := rows.Scan(&rec.ProductID, &rec.Name, &rec.Description, &rec.ModelNumber, &rec.CategoryID, &rec.Supplier,
			&rec.SourceFile, &rec.SourceSheet, &rec.Prices.CostExclVAT, &rec.Prices.CostInclVAT, &rec.Prices.RetailExclVAT,
			&rec.Prices.RetailInclVAT, &rec.Prices.MarkupPercentage, &priceType, &rec.Currency, &confidence,
			&rec.ProcessingNotes, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, err
		}
		rec.Prices.DetectedPriceType = pricing.PriceType(priceType)
		if confidence != nil {
			rec.Confidence = *confidence
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (f ListFilter) where() (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if s := strings.TrimSpace(f.Supplier); s != "" {
		add(`supplier = ?`, s)
	}
	if f.CategoryID != nil {
		add(`category_id = ?`, *f.CategoryID)
	}
	if f.MinPrice != nil {
		add(`price >= ?`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(`price <= ?`, *f.MaxPrice)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(name ILIKE ? OR model_number ILIKE ?)`, "%"+s+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(clauses, ` AND `), args
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "price":
		return "price " + dir + ", product_id"
	case "supplier":
		return "supplier " + dir + ", name"
	case "updated_at":
		return "updated_at " + dir + ", product_id"
	default:
		return "name " + dir + ", product_id"
	}
}

// classifyError maps Postgres constraint failures onto domain errors.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: duplicate product: %s", ErrValidation, pgErr.Detail)
		case "23502", "23514", "22001", "22003":
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.Message)
		}
	}
	return err
}
