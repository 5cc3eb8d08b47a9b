package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/shelfrank/internal/models"
	"github.com/hyperjump/shelfrank/pkg/utils"
)

// maxQueryParams bounds the ids bound into one IN (...) clause.
const maxQueryParams = 500

const productColumns = `product_id, title, description, category, brand, price, size, color, rating,
	click_count, add_to_cart_count, purchase_count, created_at`

// SQLiteStorage implements ProductStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private
// in-memory database on a single connection.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = dbPath + "?" + busyTimeoutParam
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		product_id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		size TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		rating REAL NOT NULL DEFAULT 0,
		click_count INTEGER NOT NULL DEFAULT 0,
		add_to_cart_count INTEGER NOT NULL DEFAULT 0,
		purchase_count INTEGER NOT NULL DEFAULT 0,
		embedding BLOB,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		product_id TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_product_id ON events(product_id);
	`
	_, err := db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var created int64
	if err := row.Scan(&p.ProductID, &p.Title, &p.Description, &p.Category, &p.Brand, &p.Price,
		&p.Size, &p.Color, &p.Rating, &p.ClickCount, &p.AddToCartCount, &p.PurchaseCount, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return &p, nil
}

// CreateProducts inserts products, including their embeddings, in one transaction.
func (s *SQLiteStorage) CreateProducts(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO products (product_id, title, description, category, brand, price, size, color, rating,
			click_count, add_to_cart_count, purchase_count, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range products {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		var blob []byte
		if len(p.Embedding) > 0 {
			blob = utils.Float32sToBytes(p.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, p.ProductID, p.Title, p.Description, p.Category, p.Brand, p.Price,
			p.Size, p.Color, p.Rating, p.ClickCount, p.AddToCartCount, p.PurchaseCount, blob, p.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert product %s: %w", p.ProductID, err)
		}
	}
	return tx.Commit()
}

// GetProduct returns a product by ID (without its embedding).
func (s *SQLiteStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ExistingIDs returns the subset of ids already in the catalog.
func (s *SQLiteStorage) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for _, chunk := range chunkIDs(ids) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT product_id FROM products WHERE product_id IN (`+placeholders(len(chunk))+`)`,
			toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			found[id] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

// CountProducts returns the catalog size.
func (s *SQLiteStorage) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// ScanEmbeddings calls fn for every product with a stored embedding, in insertion order.
func (s *SQLiteStorage) ScanEmbeddings(ctx context.Context, fn func(id string, embedding []float32) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, embedding FROM products WHERE embedding IS NOT NULL ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		if err := fn(id, utils.BytesToFloat32s(blob)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// QueryByIDs returns the products among ids that satisfy every constraint of filter.
// Numeric constraints are pushed into SQL; text constraints are checked on the scanned
// rows. Order of the result is unspecified.
func (s *SQLiteStorage) QueryByIDs(ctx context.Context, ids []string, filter ProductFilter) ([]*models.Product, error) {
	where, filterArgs := filterClause(filter)
	products := make([]*models.Product, 0, len(ids))
	for _, chunk := range chunkIDs(ids) {
		args := append(toArgs(chunk), filterArgs...)
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE product_id IN (`+placeholders(len(chunk))+`)`+where,
			args...)
		if err != nil {
			return nil, fmt.Errorf("query products: %w", err)
		}
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if filter.matchesText(p) {
				products = append(products, p)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return products, nil
}

func filterClause(f ProductFilter) (string, []any) {
	var sb strings.Builder
	var args []any
	if f.MinPrice != nil {
		sb.WriteString(` AND price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		sb.WriteString(` AND price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	if f.MinRating != nil {
		sb.WriteString(` AND rating >= ?`)
		args = append(args, *f.MinRating)
	}
	return sb.String(), args
}

// DistinctBrands returns the non-empty brand values of the catalog, sorted.
func (s *SQLiteStorage) DistinctBrands(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT brand FROM products WHERE brand != '' ORDER BY brand`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var brands []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// AllCounters returns the behavioral counters of every product.
func (s *SQLiteStorage) AllCounters(ctx context.Context) ([]models.Counters, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT click_count, add_to_cart_count, purchase_count FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Counters
	for rows.Next() {
		var c models.Counters
		if err := rows.Scan(&c.Click, &c.AddToCart, &c.Purchase); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func counterColumn(t models.EventType) string {
	switch t {
	case models.EventClick:
		return "click_count"
	case models.EventAddToCart:
		return "add_to_cart_count"
	case models.EventPurchase:
		return "purchase_count"
	}
	return ""
}

// ApplyEvent appends ev to the event log and, for product events, increments the
// matching counter. Both happen in one transaction; an unknown product changes nothing
// and returns ErrProductNotFound.
func (s *SQLiteStorage) ApplyEvent(ctx context.Context, ev *models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if col := counterColumn(ev.Type); col != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET `+col+` = `+col+` + 1 WHERE product_id = ?`, ev.ProductID)
		if err != nil {
			return fmt.Errorf("increment %s: %w", col, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment %s: %w", col, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrProductNotFound, ev.ProductID)
		}
	}

	var productID any
	if ev.ProductID != "" {
		productID = ev.ProductID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, event_type, query, product_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.Query, productID, ev.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return tx.Commit()
}

// CountEvents returns the number of recorded events.
func (s *SQLiteStorage) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func chunkIDs(ids []string) [][]string {
	var chunks [][]string
	for len(ids) > 0 {
		n := len(ids)
		if n > maxQueryParams {
			n = maxQueryParams
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
