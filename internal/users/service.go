package users

import (
	"context"

	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/logger"
)

// Service writes normalized users to the store
type Service struct {
	repo UserRepository
	mode string
}

// NewService creates a writer using the given write mode (config.WriteModeInsert or config.WriteModeUpsert).
func NewService(r UserRepository, mode string) *Service {
	if mode == "" {
		mode = config.WriteModeInsert
	}
	return &Service{repo: r, mode: mode}
}

// Import writes docs and returns the number committed. An empty input performs no write.
// Failures are returned as *InsertError for the caller to report; nothing is
// retried or rolled back.
func (s *Service) Import(ctx context.Context, docs []models.UserDocument) (int, error) {
	if len(docs) == 0 {
		logger.Infof("no users to import")
		return 0, nil
	}
	var (
		n   int
		err error
	)
	if s.mode == config.WriteModeUpsert {
		n, err = s.repo.UpsertByEmployeeID(ctx, docs)
	} else {
		n, err = s.repo.InsertMany(ctx, docs)
	}
	if err != nil {
		return n, err
	}
	logger.Infof("wrote %d users (mode=%s)", n, s.mode)
	return n, nil
}
