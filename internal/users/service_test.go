package users

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/logger"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	inserts  int
	upserts  int
	received []models.UserDocument
	failAt   int // committed count reported on failure; -1 disables
}

func (f *fakeRepo) InsertMany(ctx context.Context, docs []models.UserDocument) (int, error) {
	f.inserts++
	return f.write(docs)
}

func (f *fakeRepo) UpsertByEmployeeID(ctx context.Context, docs []models.UserDocument) (int, error) {
	f.upserts++
	return f.write(docs)
}

func (f *fakeRepo) write(docs []models.UserDocument) (int, error) {
	if f.failAt >= 0 {
		f.received = append(f.received, docs[:f.failAt]...)
		return f.failAt, &InsertError{Committed: f.failAt, Err: errors.New("E11000 duplicate key")}
	}
	f.received = append(f.received, docs...)
	return len(docs), nil
}

func docs(n int) []models.UserDocument {
	now := time.Now().UTC()
	out := make([]models.UserDocument, n)
	for i := range out {
		out[i] = models.UserDocument{Name: "u", EmployeeID: string(rune('A' + i)), Role: "user", Active: true, CreatedAt: now, UpdatedAt: now}
	}
	return out
}

func TestImportEmptyPerformsNoWrite(t *testing.T) {
	repo := &fakeRepo{failAt: -1}
	svc := NewService(repo, config.WriteModeInsert)

	n, err := svc.Import(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, repo.inserts)
	require.Zero(t, repo.upserts)
}

func TestImportInsertMode(t *testing.T) {
	repo := &fakeRepo{failAt: -1}
	n, err := NewService(repo, "").Import(context.Background(), docs(3))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 1, repo.inserts)
	require.Zero(t, repo.upserts)
	require.Len(t, repo.received, 3)
}

func TestImportUpsertMode(t *testing.T) {
	repo := &fakeRepo{failAt: -1}
	n, err := NewService(repo, config.WriteModeUpsert).Import(context.Background(), docs(2))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, repo.upserts)
	require.Zero(t, repo.inserts)
}

func TestImportPartialFailureKeepsCommitted(t *testing.T) {
	repo := &fakeRepo{failAt: 2}
	n, err := NewService(repo, config.WriteModeInsert).Import(context.Background(), docs(5))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInsert)

	var ie *InsertError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, 2, ie.Committed)
	require.Equal(t, 2, n)
	require.Len(t, repo.received, 2)
	require.Equal(t, 1, repo.inserts)
}

func TestImportFailureLeavesReportingToCaller(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	_, err := NewService(&fakeRepo{failAt: 1}, config.WriteModeInsert).Import(context.Background(), docs(3))
	require.ErrorIs(t, err, ErrInsert)
	require.NotContains(t, buf.String(), "E11000")
	require.NotContains(t, buf.String(), "level=error")
}
