package runs

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gogotex/gogotex/backend/user-sync/internal/database"
)

// Record is the Mongo representation of one sync run.
type Record struct {
	RunID      string    `bson:"runId" json:"runId"`
	State      string    `bson:"state" json:"state"`
	WriteMode  string    `bson:"writeMode" json:"writeMode"`
	Fetched    int       `bson:"fetched" json:"fetched"`
	Written    int       `bson:"written" json:"written"`
	Error      string    `bson:"error,omitempty" json:"error,omitempty"`
	Snapshot   string    `bson:"snapshot,omitempty" json:"snapshot,omitempty"`
	StartedAt  time.Time `bson:"startedAt" json:"startedAt"`
	FinishedAt time.Time `bson:"finishedAt" json:"finishedAt"`
}

// Store persists run records to a collection of the configured database.
// An empty mongoURI makes every operation a no-op.
type Store struct {
	MongoURI   string
	Database   string
	Collection string
	Timeout    time.Duration
}

func (s *Store) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 5 * time.Second
	}
	return s.Timeout
}

// Save upserts the run record keyed by runId.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if s == nil || s.MongoURI == "" {
		return nil
	}
	client, err := database.ConnectMongo(ctx, s.MongoURI, s.timeout())
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer client.Disconnect(ctx)

	return saveTo(ctx, client.Database(s.Database).Collection(s.Collection), rec)
}

func saveTo(ctx context.Context, col *mongo.Collection, rec *Record) error {
	filter := bson.M{"runId": rec.RunID}
	opts := options.Update().SetUpsert(true)
	if _, err := col.UpdateOne(ctx, filter, bson.M{"$set": rec}, opts); err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	return nil
}

// Load fetches a run record by runId. Returns nil when not found.
func (s *Store) Load(ctx context.Context, runID string) (*Record, error) {
	if s == nil || s.MongoURI == "" {
		return nil, nil
	}
	client, err := database.ConnectMongo(ctx, s.MongoURI, s.timeout())
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	defer client.Disconnect(ctx)
	return loadFrom(ctx, client.Database(s.Database).Collection(s.Collection), runID)
}

func loadFrom(ctx context.Context, col *mongo.Collection, runID string) (*Record, error) {
	var rec Record
	if err := col.FindOne(ctx, bson.M{"runId": runID}).Decode(&rec); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
