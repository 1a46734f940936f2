package syncjob

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
	"github.com/gogotex/gogotex/backend/user-sync/internal/runs"
	"github.com/gogotex/gogotex/backend/user-sync/internal/storage"
	"github.com/gogotex/gogotex/backend/user-sync/internal/transform"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/logger"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/metrics"
)

// State is a step of a sync run. Runs move forward only and never resume.
type State string

const (
	StateIdle                 State = "idle"
	StateReading              State = "reading"
	StatePreviewing           State = "previewing"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateConnecting           State = "connecting"
	StateInserting            State = "inserting"
	StateDone                 State = "done"
	StateCancelled            State = "cancelled"
	StateDryRun               State = "dry_run"
	StateFailed               State = "failed"
)

const confirmPrompt = "\nDo you want to proceed with importing these users? (yes/no): "

// DirectoryReader fetches the raw users. The session must be released before it returns.
type DirectoryReader interface {
	FetchUsers(ctx context.Context) ([]models.DirectoryUser, error)
}

// UserWriter writes normalized documents and returns how many were committed.
type UserWriter interface {
	Import(ctx context.Context, docs []models.UserDocument) (int, error)
}

// StoreOpener connects to the document store once the operator has confirmed.
// The returned close function releases the connection.
type StoreOpener func(ctx context.Context) (UserWriter, func(context.Context) error, error)

// RunLock keeps two runs from importing at the same time.
type RunLock interface {
	Acquire(ctx context.Context, token string) error
	Release(ctx context.Context, token string) error
}

// SnapshotArchiver stores a copy of what was read from the directory.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap *storage.Snapshot) (string, error)
}

// RunRecorder persists the outcome of a run.
type RunRecorder interface {
	Save(ctx context.Context, rec *runs.Record) error
}

// Options control the confirmation gate and write mode.
type Options struct {
	AssumeYes bool
	DryRun    bool
	WriteMode string
	BaseDN    string
}

// Job runs one extract, preview, confirm, load pass. Lock, Archive and
// Recorder are optional.
type Job struct {
	Reader    DirectoryReader
	OpenStore StoreOpener
	Lock      RunLock
	Archive   SnapshotArchiver
	Recorder  RunRecorder

	In  io.Reader
	Out io.Writer

	Options Options

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Result summarises a finished run.
type Result struct {
	RunID    string
	State    State
	Fetched  int
	Written  int
	Snapshot string
}

// Confirmed reports whether an operator answer allows the write phase.
// Only "yes" (trimmed, any case) counts.
func Confirmed(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

func (j *Job) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *Job) say(format string, args ...interface{}) {
	fmt.Fprintf(j.Out, format+"\n", args...)
}

// Run executes the pipeline. The returned error is nil for completed, cancelled
// and dry runs; any failure leaves res.State == StateFailed.
func (j *Job) Run(ctx context.Context) (res *Result, err error) {
	newID := j.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	res = &Result{RunID: newID(), State: StateIdle}
	log := logger.WithField("run", res.RunID)
	started := j.now().UTC()

	mode := j.Options.WriteMode
	if mode == "" {
		mode = config.WriteModeInsert
	}

	var snapshotKey string
	defer func() {
		if err != nil {
			res.State = StateFailed
		}
		res.Snapshot = snapshotKey
		j.finish(ctx, log, res, mode, started, err)
	}()

	if j.Lock != nil {
		if err = j.Lock.Acquire(ctx, res.RunID); err != nil {
			j.say("Sync not started: %v", err)
			return res, err
		}
		defer func() {
			if rerr := j.Lock.Release(context.Background(), res.RunID); rerr != nil {
				log.Warnf("release run lock: %v", rerr)
			}
		}()
	}

	res.State = StateReading
	log.Infof("reading directory users")
	users, err := j.Reader.FetchUsers(ctx)
	if err != nil {
		j.say("LDAP Error: %v", err)
		return res, err
	}
	res.Fetched = len(users)
	metrics.UsersFetched.Set(float64(len(users)))

	if j.Archive != nil {
		key, aerr := j.Archive.ArchiveSnapshot(ctx, &storage.Snapshot{
			RunID:   res.RunID,
			TakenAt: j.now().UTC(),
			BaseDN:  j.Options.BaseDN,
			Users:   users,
		})
		if aerr != nil {
			log.Warnf("snapshot archive failed: %v", aerr)
		} else {
			snapshotKey = key
			log.Infof("snapshot archived to %s", key)
		}
	}

	res.State = StatePreviewing
	if err = transform.Preview(j.Out, users); err != nil {
		return res, fmt.Errorf("render preview: %w", err)
	}

	if j.Options.DryRun {
		res.State = StateDryRun
		j.say("Dry run: no users imported.")
		return res, nil
	}

	res.State = StateAwaitingConfirmation
	if !j.Options.AssumeYes && !j.confirm(ctx) {
		res.State = StateCancelled
		j.say("User import cancelled.")
		return res, nil
	}

	res.State = StateConnecting
	writer, closeStore, err := j.OpenStore(ctx)
	if err != nil {
		j.say("MongoDB Connection Error: %v", err)
		return res, err
	}
	defer func() {
		if cerr := closeStore(context.Background()); cerr != nil {
			log.Warnf("close store: %v", cerr)
		}
	}()

	docs := transform.Normalize(users, j.now().UTC())

	res.State = StateInserting
	n, err := writer.Import(ctx, docs)
	res.Written = n
	metrics.DocumentsWritten.WithLabelValues(mode).Add(float64(n))
	if err != nil {
		j.say("MongoDB Import Error: %v", err)
		return res, err
	}
	if len(docs) == 0 {
		j.say("No users to import")
	} else {
		j.say("Imported %d users to MongoDB", n)
	}

	res.State = StateDone
	return res, nil
}

// confirm asks once on Out and reads a single line from In. EOF counts as "no",
// and so does cancelling ctx while the operator has not answered.
func (j *Job) confirm(ctx context.Context) bool {
	fmt.Fprint(j.Out, confirmPrompt)
	if j.In == nil {
		return false
	}

	// The read cannot be interrupted, so it is left behind if ctx ends first.
	answer := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(j.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Warnf("read confirmation: %v", err)
			line = ""
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(j.Out)
		logger.Warnf("confirmation interrupted: %v", ctx.Err())
		return false
	case line := <-answer:
		return ctx.Err() == nil && Confirmed(line)
	}
}

func (j *Job) finish(ctx context.Context, log *logrus.Entry, res *Result, mode string, started time.Time, runErr error) {
	finished := j.now().UTC()
	metrics.Runs.WithLabelValues(string(res.State)).Inc()
	metrics.LastRunTimestamp.Set(float64(finished.Unix()))

	if runErr != nil {
		log.Errorf("run failed: %v", runErr)
	} else {
		log.Infof("run finished: state=%s fetched=%d written=%d", res.State, res.Fetched, res.Written)
	}

	if j.Recorder == nil {
		return
	}
	rec := &runs.Record{
		RunID:      res.RunID,
		State:      string(res.State),
		WriteMode:  mode,
		Fetched:    res.Fetched,
		Written:    res.Written,
		Snapshot:   res.Snapshot,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	// saved even when the run context was cancelled
	if err := j.Recorder.Save(context.WithoutCancel(ctx), rec); err != nil {
		log.Warnf("record run: %v", err)
	}
}
