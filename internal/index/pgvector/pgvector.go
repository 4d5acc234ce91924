package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdftalk/internal/index"
	"pdftalk/internal/models"
)

// row is one stored chunk. Embeddings travel as pgvector literals so the
// column's vector input function does the parsing.
type row struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string  `bun:"id,pk"`
	Content       string  `bun:"content,notnull"`
	Embedding     string  `bun:"embedding,notnull"`
	Source        string  `bun:"source,notnull"`
	Page          int     `bun:"page,notnull"`
	PDFName       string  `bun:"pdf_name,notnull"`
	Distance      float64 `bun:"distance,scanonly"`
}

// Store keeps one table per index name in a Postgres database with the
// pgvector extension.
type Store struct {
	db     *bun.DB
	name   string
	metric string
}

func Connect(dsn string, debug bool) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func New(db *bun.DB, name string) *Store {
	return &Store{db: db, name: name, metric: "dotproduct"}
}

// Ensure creates the table with the dimension baked into the column type.
// A pre-existing table is reused as is; a dimension mismatch only shows up
// as an insert error later.
func (s *Store) Ensure(ctx context.Context, dimension int, metric string) error {
	s.metric = metric
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexProvisioning, err)
	}
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			content text NOT NULL,
			embedding vector(%d) NOT NULL,
			source text NOT NULL,
			page integer NOT NULL,
			pdf_name text NOT NULL
		)`,
		pgIdent(s.name), dimension,
	)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexProvisioning, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.NewSelect().
		ColumnExpr("EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = ?)", s.name).
		Scan(ctx, &exists)
	return exists, err
}

func (s *Store) Delete(ctx context.Context) error {
	_, err := s.db.NewDropTable().Table(s.name).IfExists().Exec(ctx)
	return err
}

func (s *Store) Add(ctx context.Context, records []index.Record) error {
	rows := make([]row, len(records))
	for i, rec := range records {
		rows[i] = row{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: vectorLiteral(rec.Values),
			Source:    rec.Metadata.Source,
			Page:      rec.Metadata.Page,
			PDFName:   rec.Metadata.PDFName,
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ModelTableExpr("? AS d", bun.Ident(s.name)).
		Exec(ctx)
	return err
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error) {
	op := distanceOp(s.metric)
	literal := vectorLiteral(vector)
	var rows []row
	err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS d", bun.Ident(s.name)).
		Column("content", "source", "page", "pdf_name").
		ColumnExpr("embedding "+op+" ?::vector AS distance", literal).
		OrderExpr("embedding "+op+" ?::vector", literal).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, models.SearchResult{
			Chunk: models.Chunk{
				Content: r.Content,
				Metadata: models.Metadata{
					Source:  r.Source,
					Page:    r.Page,
					PDFName: r.PDFName,
				},
			},
			Score: score(s.metric, r.Distance),
		})
	}
	return results, nil
}

// distanceOp maps a similarity metric to its pgvector distance operator.
func distanceOp(metric string) string {
	switch metric {
	case "cosine":
		return "<=>"
	case "euclidean", "l2":
		return "<->"
	default: // dotproduct
		return "<#>"
	}
}

// score converts the operator's distance back to a descending similarity.
// <#> returns the negative inner product, <=> the cosine distance.
func score(metric string, distance float64) float32 {
	switch metric {
	case "cosine":
		return float32(1 - distance)
	default:
		return float32(-distance)
	}
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// pgIdent quotes a table name sourced from configuration.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
