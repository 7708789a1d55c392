// Package executor runs SQL against user-connected Postgres databases.
//
// Each call opens a fresh connection from the stored connection
// descriptor and closes it when done, mirroring the per-request
// connection model of the rule engine: the engine holds no pools for
// arbitrary target databases.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sqlward/internal/domain"
)

// Postgres implements domain.QueryExecutor over pgx.
type Postgres struct {
	logger *slog.Logger
}

// NewPostgres creates a Postgres executor.
func NewPostgres(logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{logger: logger}
}

// Query runs sqlText against the target database and returns the rows as
// column-name→value mappings.
func (p *Postgres) Query(ctx context.Context, db *domain.Database, sqlText string) ([]domain.Row, error) {
	conn, err := p.connect(ctx, db)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, sqlText)
	if err != nil {
		return nil, statementError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []domain.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(domain.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, statementError(err)
	}
	return out, nil
}

// Exec runs a statement that returns no rows. DDL batches are sent
// without arguments so multi-statement trigger setup works over the
// simple protocol.
func (p *Postgres) Exec(ctx context.Context, db *domain.Database, sqlText string) error {
	conn, err := p.connect(ctx, db)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, sqlText); err != nil {
		return statementError(err)
	}
	return nil
}

func (p *Postgres) connect(ctx context.Context, db *domain.Database) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, dsn(db))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", db.DatabaseName, err)
	}
	return conn, nil
}

// dsn builds the connection string: the stored URI wins, otherwise the
// discrete fields are assembled.
func dsn(db *domain.Database) string {
	if db.ConnectionURI != "" {
		return db.ConnectionURI
	}
	host := db.Host
	if host == "" {
		host = "localhost"
	}
	port := db.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.Username, db.Password),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + db.DatabaseName,
	}
	return u.String()
}

// statementError marks statement-level failures (syntax, permissions) so
// callers can tell them apart from connectivity failures, which come back
// from connect unwrapped.
func statementError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("statement rejected (%s): %w", pgErr.Code, err)
	}
	return err
}
