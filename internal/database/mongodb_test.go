package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectMongoRejectsInvalidURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-mongo-uri", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongo connect")
}

func TestConnectMongoUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for server selection timeout")
	}
	_, err := ConnectMongo(context.Background(), "mongodb://127.0.0.1:1/?connect=direct", 300*time.Millisecond)
	require.Error(t, err)
}
