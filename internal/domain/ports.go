package domain

import "context"

// RuleRepository is the policy store adapter: durable CRUD access to rule
// records keyed by rule id and database id. Implementations must return
// rules in stable creation order and validate nothing themselves — enum
// validation happens in the service layer before a write reaches here.
type RuleRepository interface {
	// FindByDatabase returns the rules scoped to a database, in creation
	// order. With activeOnly set, inactive rules are excluded.
	FindByDatabase(ctx context.Context, databaseID string, activeOnly bool) ([]Rule, error)
	FindByID(ctx context.Context, id string) (*Rule, error)
	Create(ctx context.Context, rule *Rule) (*Rule, error)
	Update(ctx context.Context, rule *Rule) (*Rule, error)
	Delete(ctx context.Context, id string) error
}

// DatabaseRepository provides access to connected-database records.
type DatabaseRepository interface {
	FindByID(ctx context.Context, id string) (*Database, error)
	// FindForUser resolves a database only when it belongs to the given
	// user; otherwise NotFoundError.
	FindForUser(ctx context.Context, id, userID string) (*Database, error)
	ListForUser(ctx context.Context, userID string) ([]Database, error)
	ListAll(ctx context.Context) ([]Database, error)
	Create(ctx context.Context, d *Database) (*Database, error)
	Delete(ctx context.Context, id string) error
}

// QueryLogRepository records enforced executions.
type QueryLogRepository interface {
	Insert(ctx context.Context, entry *QueryLog) error
	ListForDatabase(ctx context.Context, databaseID string, limit int) ([]QueryLog, error)
}

// QueryExecutor opens a connection to a target database, runs a
// statement, and closes the connection. Statement errors (syntax,
// permissions) are reported distinctly from connectivity errors.
type QueryExecutor interface {
	// Query runs sqlText and returns the result rows.
	Query(ctx context.Context, db *Database, sqlText string) ([]Row, error)
	// Exec runs a statement that returns no rows, such as trigger DDL.
	Exec(ctx context.Context, db *Database, sqlText string) error
}
