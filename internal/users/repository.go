package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/database"
	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"
)

var (
	// ErrConnect is returned when the store cannot be reached.
	ErrConnect = errors.New("store connect failed")
	// ErrInsert matches every *InsertError.
	ErrInsert = errors.New("store insert failed")
)

// InsertError reports a failed bulk write. Documents before the failure stay committed.
type InsertError struct {
	Committed int
	Err       error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("%v after %d committed documents: %v", ErrInsert, e.Committed, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

func (e *InsertError) Is(target error) bool { return target == ErrInsert }

// UserRepository defines persistence operations for imported users
type UserRepository interface {
	InsertMany(ctx context.Context, docs []models.UserDocument) (int, error)
	UpsertByEmployeeID(ctx context.Context, docs []models.UserDocument) (int, error)
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col       *mongo.Collection
	timeout   time.Duration
	batchSize int
	limiter   *rate.Limiter
}

// NewMongoUserRepository creates a new repository for the given collection.
// Writes are split into cfg.BatchSize chunks (0 = single call) and paced at
// cfg.BatchesPerSecond when positive.
func NewMongoUserRepository(col *mongo.Collection, cfg config.MongoDBConfig) *MongoUserRepository {
	r := &MongoUserRepository{col: col, timeout: cfg.Timeout, batchSize: cfg.BatchSize}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if cfg.BatchesPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1)
	}
	return r
}

// Store is an open connection to the users collection.
type Store struct {
	client *mongo.Client
	Repo   *MongoUserRepository
}

// OpenStore connects to cfg.URI and selects cfg.Database / cfg.Collection.
func OpenStore(ctx context.Context, cfg config.MongoDBConfig) (*Store, error) {
	client, err := database.ConnectMongo(ctx, cfg.URI, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	col := client.Database(cfg.Database).Collection(cfg.Collection)
	logger.Debugf("store opened: db=%s collection=%s", cfg.Database, cfg.Collection)
	return &Store{client: client, Repo: NewMongoUserRepository(col, cfg)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (r *MongoUserRepository) chunks(n int) [][2]int {
	size := r.batchSize
	if size <= 0 || size > n {
		size = n
	}
	var out [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}

func (r *MongoUserRepository) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// InsertMany appends docs with ordered InsertMany calls and returns how many were committed.
func (r *MongoUserRepository) InsertMany(ctx context.Context, docs []models.UserDocument) (int, error) {
	committed := 0
	for _, c := range r.chunks(len(docs)) {
		if err := r.wait(ctx); err != nil {
			return committed, &InsertError{Committed: committed, Err: err}
		}
		batch := make([]interface{}, 0, c[1]-c[0])
		for _, d := range docs[c[0]:c[1]] {
			batch = append(batch, d)
		}
		wctx, cancel := context.WithTimeout(ctx, r.timeout)
		_, err := r.col.InsertMany(wctx, batch, options.InsertMany().SetOrdered(true))
		cancel()
		if err != nil {
			committed += committedBefore(err)
			return committed, &InsertError{Committed: committed, Err: err}
		}
		committed += len(batch)
		logger.Debugf("inserted batch [%d:%d]", c[0], c[1])
	}
	return committed, nil
}

// UpsertByEmployeeID updates existing users matched on employeeID and inserts the rest.
// Documents without an employee id cannot be matched and are always inserted.
func (r *MongoUserRepository) UpsertByEmployeeID(ctx context.Context, docs []models.UserDocument) (int, error) {
	written := 0
	for _, c := range r.chunks(len(docs)) {
		if err := r.wait(ctx); err != nil {
			return written, &InsertError{Committed: written, Err: err}
		}
		writes := make([]mongo.WriteModel, 0, c[1]-c[0])
		for _, d := range docs[c[0]:c[1]] {
			writes = append(writes, upsertModel(d))
		}
		wctx, cancel := context.WithTimeout(ctx, r.timeout)
		_, err := r.col.BulkWrite(wctx, writes, options.BulkWrite().SetOrdered(true))
		cancel()
		if err != nil {
			written += committedBefore(err)
			return written, &InsertError{Committed: written, Err: err}
		}
		written += len(writes)
	}
	return written, nil
}

func upsertModel(d models.UserDocument) mongo.WriteModel {
	if d.EmployeeID == "" {
		return mongo.NewInsertOneModel().SetDocument(d)
	}
	update := bson.M{
		"$set": bson.M{
			"name":       d.Name,
			"email":      d.Email,
			"department": d.Department,
			"updatedAt":  d.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"mobile":    d.Mobile,
			"role":      d.Role,
			"active":    d.Active,
			"createdAt": d.CreatedAt,
		},
	}
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"employeeID": d.EmployeeID}).
		SetUpdate(update).
		SetUpsert(true)
}

// committedBefore returns how many documents of an ordered batch were written before it failed.
func committedBefore(err error) int {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		return 0
	}
	first := bwe.WriteErrors[0].Index
	for _, we := range bwe.WriteErrors[1:] {
		if we.Index < first {
			first = we.Index
		}
	}
	return first
}
