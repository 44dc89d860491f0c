// Package sink persists accepted catalog records.
//
// Database and spreadsheet sinks upsert by product id, so re-running a crawl
// over the same categories refreshes rows instead of duplicating them. The
// JSONL sink appends.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/use-agent/catalog/models"
)

// Sink receives batches of accepted records. Implementations must be safe for
// concurrent Write calls.
type Sink interface {
	Name() string
	Write(ctx context.Context, products []models.NormalizedProduct) error
	Close() error
}

// Kind names a sink implementation.
type Kind string

const (
	KindNone     Kind = "none"
	KindJSONL    Kind = "jsonl"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindMongo    Kind = "mongodb"
	KindExcel    Kind = "excel"
)

// Config selects and configures one or more sinks.
type Config struct {
	// Kinds is a list of sink kinds; more than one fans out.
	Kinds []Kind `yaml:"kinds"`

	// Path is the output file for jsonl, excel and sqlite.
	Path string `yaml:"path"`

	// DSN is the connection string for postgres, mysql and mongodb.
	DSN string `yaml:"dsn"`

	// Table is the SQL table or Mongo collection. Default: "products".
	Table string `yaml:"table"`

	// Database is the Mongo database. Default: "catalog".
	Database string `yaml:"database"`
}

// ParseKinds splits a comma-separated kind list.
func ParseKinds(s string) []Kind {
	var out []Kind
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, Kind(part))
		}
	}
	return out
}

// Open builds the sink(s) described by cfg. A config with no kinds, or only
// "none", returns a Discard sink.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Table == "" {
		cfg.Table = "products"
	}
	if cfg.Database == "" {
		cfg.Database = "catalog"
	}

	var sinks []Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}
	for _, kind := range cfg.Kinds {
		s, err := openOne(ctx, kind, cfg)
		if err != nil {
			closeAll()
			return nil, err
		}
		if s != nil {
			sinks = append(sinks, s)
		}
	}

	switch len(sinks) {
	case 0:
		return Discard{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMulti(sinks...), nil
	}
}

func openOne(ctx context.Context, kind Kind, cfg Config) (Sink, error) {
	switch kind {
	case KindNone, "":
		return nil, nil
	case KindJSONL:
		return NewJSONL(cfg.Path)
	case KindExcel:
		return NewExcel(cfg.Path)
	case KindSQLite:
		return OpenSQL(ctx, DialectSQLite, cfg.Path, cfg.Table)
	case KindPostgres:
		return OpenSQL(ctx, DialectPostgres, cfg.DSN, cfg.Table)
	case KindMySQL:
		return OpenSQL(ctx, DialectMySQL, cfg.DSN, cfg.Table)
	case KindMongo:
		return OpenMongo(ctx, cfg.DSN, cfg.Database, cfg.Table)
	default:
		return nil, fmt.Errorf("sink: unknown kind %q", kind)
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) Name() string                                          { return string(KindNone) }
func (Discard) Write(context.Context, []models.NormalizedProduct) error { return nil }
func (Discard) Close() error                                          { return nil }

// Multi fans a batch out to several sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Write writes to every sink, even after one fails.
func (m *Multi) Write(ctx context.Context, products []models.NormalizedProduct) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, products); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
