package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/use-agent/catalog/models"
)

// Dialect is a SQL flavour supported by the SQL sink.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var columns = []string{
	"product_id", "name", "price", "currency", "image_url", "product_url",
	"availability", "category", "subcategory", "colors", "updated_at",
}

// SQL upserts records into one table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	table   string
	upsert  string
}

// OpenSQL connects, pings and creates the table if missing. For SQLite dsn is
// a file path (":memory:" works for tests).
func OpenSQL(ctx context.Context, dialect Dialect, dsn, table string) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sink: %s dsn is required", dialect)
	}
	if table == "" {
		table = "products"
	}
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("sink: invalid table name %q", table)
	}

	if dialect == DialectSQLite && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sink: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// Single writer; also keeps one :memory: database alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: ping %s: %w", dialect, err)
	}

	s := &SQL{db: db, dialect: dialect, table: table, upsert: upsertStatement(dialect, table)}
	if _, err := db.ExecContext(ctx, createStatement(dialect, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: create table %s: %w", table, err)
	}
	return s, nil
}

func (s *SQL) Name() string { return string(s.dialect) }

// DB exposes the underlying handle for queries.
func (s *SQL) DB() *sql.DB { return s.db }

// Write upserts the batch in one transaction.
func (s *SQL) Write(ctx context.Context, products []models.NormalizedProduct) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sink: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.upsert)
	if err != nil {
		return fmt.Errorf("sink: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range products {
		colors, err := encodeColors(p.Colors)
		if err != nil {
			return fmt.Errorf("sink: encode colors for %s: %w", p.ProductID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ProductID, p.Name, nullFloat(p.Price), p.Currency,
			nullString(p.ImageURL), nullString(p.ProductURL),
			nullString(p.Availability), nullString(p.Category), nullString(p.Subcategory),
			colors, now,
		); err != nil {
			return fmt.Errorf("sink: upsert %s: %w", p.ProductID, err)
		}
	}
	return tx.Commit()
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func createStatement(d Dialect, table string) string {
	idType, textType, floatType, timeType := "TEXT", "TEXT", "DOUBLE PRECISION", "TIMESTAMP"
	if d == DialectMySQL {
		idType, floatType, timeType = "VARCHAR(191)", "DOUBLE", "DATETIME"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	product_id %s PRIMARY KEY,
	name %s NOT NULL,
	price %s,
	currency %s,
	image_url %s,
	product_url %s,
	availability %s,
	category %s,
	subcategory %s,
	colors %s,
	updated_at %s
)`, table, idType, textType, floatType, textType, textType, textType, textType, textType, textType, textType, timeType)
}

func upsertStatement(d Dialect, table string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		if d == DialectPostgres {
			placeholders[i] = "$" + strconv.Itoa(i+1)
		} else {
			placeholders[i] = "?"
		}
	}

	updates := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		if d == DialectMySQL {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if d == DialectMySQL {
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	}
	return insert + " ON CONFLICT (product_id) DO UPDATE SET " + strings.Join(updates, ", ")
}

func encodeColors(colors []any) (sql.NullString, error) {
	if colors == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(colors)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
