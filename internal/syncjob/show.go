package syncjob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gogotex/gogotex/backend/user-sync/internal/runs"
	"github.com/gogotex/gogotex/backend/user-sync/internal/storage"
	"github.com/gogotex/gogotex/backend/user-sync/internal/transform"
)

// ErrRunNotFound is returned by ShowRun when no record exists for the id.
var ErrRunNotFound = errors.New("run not found")

// RunLoader reads back a recorded run. A nil record means not found.
type RunLoader interface {
	Load(ctx context.Context, runID string) (*runs.Record, error)
}

// SnapshotLoader reads back an archived directory snapshot.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, runID string) (*storage.Snapshot, error)
}

// ShowRun prints the stored outcome of a past run and, when snapshots is set
// and the run archived one, the users that were read.
func ShowRun(ctx context.Context, w io.Writer, runID string, records RunLoader, snapshots SnapshotLoader) error {
	rec, err := records.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	fmt.Fprintf(w, "Run:      %s\n", rec.RunID)
	fmt.Fprintf(w, "State:    %s\n", rec.State)
	fmt.Fprintf(w, "Mode:     %s\n", rec.WriteMode)
	fmt.Fprintf(w, "Started:  %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Finished: %s\n", rec.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Fetched:  %d\n", rec.Fetched)
	fmt.Fprintf(w, "Written:  %d\n", rec.Written)
	if rec.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", rec.Error)
	}

	if rec.Snapshot == "" || snapshots == nil {
		return nil
	}
	snap, err := snapshots.LoadSnapshot(ctx, rec.RunID)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", rec.Snapshot, err)
	}
	fmt.Fprintf(w, "Snapshot: %s (base %s, taken %s)\n", rec.Snapshot, snap.BaseDN, snap.TakenAt.Format(time.RFC3339))
	return transform.Preview(w, snap.Users)
}
