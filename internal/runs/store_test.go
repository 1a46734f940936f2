package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestSaveLoadNoopWhenMongoURIEmpty(t *testing.T) {
	rec := &Record{RunID: "r1", State: "done", StartedAt: time.Now(), FinishedAt: time.Now()}
	s := &Store{}
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("expected no error for empty mongoURI, got %v", err)
	}
	if got, err := s.Load(context.Background(), "r1"); err != nil || got != nil {
		t.Fatalf("expected nil result for empty mongoURI, got %v err=%v", got, err)
	}

	var nilStore *Store
	require.NoError(t, nilStore.Save(context.Background(), rec))
}

func TestSaveAndLoadAgainstCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 0}})
		err := saveTo(context.Background(), mt.Coll, &Record{RunID: "r1", State: "done", Fetched: 3, Written: 3})
		require.NoError(mt, err)
	})

	mt.Run("load found", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "runId", Value: "r1"},
			{Key: "state", Value: "done"},
			{Key: "fetched", Value: 3},
		}))
		rec, err := loadFrom(context.Background(), mt.Coll, "r1")
		require.NoError(mt, err)
		require.NotNil(mt, rec)
		require.Equal(mt, "done", rec.State)
		require.Equal(mt, 3, rec.Fetched)
	})

	mt.Run("load missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		rec, err := loadFrom(context.Background(), mt.Coll, "nope")
		require.NoError(mt, err)
		require.Nil(mt, rec)
	})
}
