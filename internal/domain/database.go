package domain

import "time"

// DatabaseRole gates rule mutation on a connected database. Only owners
// may create, update, or delete rules; query execution itself is not
// gated by the role.
type DatabaseRole string

const (
	RoleOwner    DatabaseRole = "owner"
	RoleReadOnly DatabaseRole = "read-only"
)

// Database is a read-mostly record describing a user-connected target
// database. DatabaseName doubles as the primary data table that at-rest
// masking triggers bind to. Connection is either a full URI or the
// discrete host fields.
type Database struct {
	ID            string
	UserID        string
	DatabaseName  string
	ConnectionURI string
	Host          string
	Port          int
	Username      string
	Password      string
	Role          DatabaseRole
	CreatedAt     time.Time
}

// CreateDatabaseRequest holds parameters for registering a target database.
type CreateDatabaseRequest struct {
	DatabaseName  string
	ConnectionURI string
	Host          string
	Port          int
	Username      string
	Password      string
	Role          DatabaseRole
}

// Validate checks that the request is well-formed.
func (r *CreateDatabaseRequest) Validate() error {
	if r.DatabaseName == "" {
		return ErrValidation("database_name is required")
	}
	if r.ConnectionURI == "" && r.Host == "" {
		return ErrValidation("either connection_uri or host is required")
	}
	if r.Role != "" && r.Role != RoleOwner && r.Role != RoleReadOnly {
		return ErrValidation("role must be %q or %q", RoleOwner, RoleReadOnly)
	}
	return nil
}
