package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage archives directory snapshots to a MinIO (or S3-compatible) bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

// Snapshot is the archived form of one directory read.
type Snapshot struct {
	RunID   string                 `json:"runId"`
	TakenAt time.Time              `json:"takenAt"`
	BaseDN  string                 `json:"baseDN"`
	Count   int                    `json:"count"`
	Users   []models.DirectoryUser `json:"users"`
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg config.MinIOConfig) (*MinIOStorage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio config missing")
	}
	s, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	mc := s.client
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func newStorage(cfg config.MinIOConfig) (*MinIOStorage, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOStorage{client: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// SnapshotKey is the object key for a run's snapshot.
func SnapshotKey(prefix, runID string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + runID + ".json"
}

// EncodeSnapshot renders a snapshot as indented JSON.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	snap.Count = len(snap.Users)
	return json.MarshalIndent(snap, "", "  ")
}

// ArchiveSnapshot uploads the snapshot and returns its object key.
func (s *MinIOStorage) ArchiveSnapshot(ctx context.Context, snap *Snapshot) (string, error) {
	b, err := EncodeSnapshot(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(s.prefix, snap.RunID)
	if err := s.UploadFile(ctx, key, bytes.NewReader(b), int64(len(b)), "application/json"); err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	return key, nil
}

// UploadFile uploads data from reader to the configured bucket using the provided key.
func (s *MinIOStorage) UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// LoadSnapshot downloads and decodes a previously archived snapshot.
func (s *MinIOStorage) LoadSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, SnapshotKey(s.prefix, runID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return DecodeSnapshot(obj)
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
