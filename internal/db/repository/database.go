package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sqlward/internal/domain"
)

// DatabaseRepo stores connected-database records.
type DatabaseRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewDatabaseRepo creates a DatabaseRepo on the given pool pair.
func NewDatabaseRepo(writeDB, readDB *sql.DB) *DatabaseRepo {
	return &DatabaseRepo{writeDB: writeDB, readDB: readDB}
}

const databaseColumns = `id, user_id, database_name, connection_uri, host, port, username, password, role, created_at`

// FindByID returns one database record or NotFoundError.
func (r *DatabaseRepo) FindByID(ctx context.Context, id string) (*domain.Database, error) {
	row := r.readDB.QueryRowContext(ctx, `SELECT `+databaseColumns+` FROM databases WHERE id = ?`, id)
	return scanDatabase(row, id)
}

// FindForUser resolves a database only when it belongs to the given user.
func (r *DatabaseRepo) FindForUser(ctx context.Context, id, userID string) (*domain.Database, error) {
	row := r.readDB.QueryRowContext(ctx,
		`SELECT `+databaseColumns+` FROM databases WHERE id = ? AND user_id = ?`, id, userID)
	return scanDatabase(row, id)
}

// ListForUser returns all databases registered by a user, oldest first.
func (r *DatabaseRepo) ListForUser(ctx context.Context, userID string) ([]domain.Database, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT `+databaseColumns+` FROM databases WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return collectDatabases(rows)
}

// ListAll returns every registered database. Used by the re-sync
// reconciler.
func (r *DatabaseRepo) ListAll(ctx context.Context) ([]domain.Database, error) {
	rows, err := r.readDB.QueryContext(ctx, `SELECT `+databaseColumns+` FROM databases ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return collectDatabases(rows)
}

// Create persists a new database record, assigning an id when absent.
func (r *DatabaseRepo) Create(ctx context.Context, d *domain.Database) (*domain.Database, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Role == "" {
		d.Role = domain.RoleReadOnly
	}
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO databases (id, user_id, database_name, connection_uri, host, port, username, password, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.DatabaseName, d.ConnectionURI,
		d.Host, d.Port, d.Username, d.Password, string(d.Role),
	)
	if err != nil {
		return nil, fmt.Errorf("insert database: %w", err)
	}
	return r.FindByID(ctx, d.ID)
}

// Delete removes a database record. Rules cascade via the foreign key.
func (r *DatabaseRepo) Delete(ctx context.Context, id string) error {
	res, err := r.writeDB.ExecContext(ctx, `DELETE FROM databases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete database: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("database %s not found", id)
	}
	return nil
}

func scanDatabase(row *sql.Row, id string) (*domain.Database, error) {
	var (
		d         domain.Database
		role      string
		createdAt time.Time
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.DatabaseName, &d.ConnectionURI,
		&d.Host, &d.Port, &d.Username, &d.Password, &role, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("database %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	d.Role = domain.DatabaseRole(role)
	d.CreatedAt = createdAt
	return &d, nil
}

func collectDatabases(rows *sql.Rows) ([]domain.Database, error) {
	defer rows.Close()

	var out []domain.Database
	for rows.Next() {
		var (
			d         domain.Database
			role      string
			createdAt time.Time
		)
		err := rows.Scan(
			&d.ID, &d.UserID, &d.DatabaseName, &d.ConnectionURI,
			&d.Host, &d.Port, &d.Username, &d.Password, &role, &createdAt,
		)
		if err != nil {
			return nil, err
		}
		d.Role = domain.DatabaseRole(role)
		d.CreatedAt = createdAt
		out = append(out, d)
	}
	return out, rows.Err()
}
