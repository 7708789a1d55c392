package service

import (
	"context"
	"log/slog"

	"sqlward/internal/domain"
)

// DatabaseService manages connected-database records for callers.
type DatabaseService struct {
	databases domain.DatabaseRepository
	logger    *slog.Logger
}

// NewDatabaseService creates a DatabaseService.
func NewDatabaseService(databases domain.DatabaseRepository, logger *slog.Logger) *DatabaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatabaseService{databases: databases, logger: logger}
}

// List returns the caller's registered databases.
func (s *DatabaseService) List(ctx context.Context) ([]domain.Database, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("no caller identity")
	}
	return s.databases.ListForUser(ctx, caller.UserID)
}

// Register validates and stores a new target-database record owned by
// the caller.
func (s *DatabaseService) Register(ctx context.Context, req domain.CreateDatabaseRequest) (*domain.Database, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("no caller identity")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d := &domain.Database{
		UserID:        caller.UserID,
		DatabaseName:  req.DatabaseName,
		ConnectionURI: req.ConnectionURI,
		Host:          req.Host,
		Port:          req.Port,
		Username:      req.Username,
		Password:      req.Password,
		Role:          req.Role,
	}
	created, err := s.databases.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.logger.Info("database registered", "database", created.ID, "name", created.DatabaseName)
	return created, nil
}

// Delete removes a database record the caller is connected to. Rules
// cascade with it.
func (s *DatabaseService) Delete(ctx context.Context, id string) error {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return domain.ErrAccessDenied("no caller identity")
	}
	if _, err := s.databases.FindForUser(ctx, id, caller.UserID); err != nil {
		return err
	}
	if err := s.databases.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("database removed", "database", id)
	return nil
}
