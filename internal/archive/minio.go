// Package archive keeps an immutable JSON snapshot of every approved
// version of a content item in an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"aula/api/internal/content"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Snapshot describes one stored object.
type Snapshot struct {
	Key      string    `json:"key"`
	Version  int64     `json:"version"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"storedAt"`
}

type Store struct {
	client *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	logrus.WithField("bucket", s.bucket).Info("archive: bucket created")
	return nil
}

// ObjectKey is the object name for one version of an item.
func ObjectKey(kind content.Kind, id string, version int64) string {
	return fmt.Sprintf("%s/%s/v%d.json", kind, id, version)
}

func objectPrefix(kind content.Kind, id string) string {
	return fmt.Sprintf("%s/%s/", kind, id)
}

// VersionFromKey extracts the version from an object key written by Put.
func VersionFromKey(key string) (int64, bool) {
	name := key[strings.LastIndex(key, "/")+1:]
	if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	version, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".json"), 10, 64)
	if err != nil || version <= 0 {
		return 0, false
	}
	return version, true
}

// Encode renders the stored form of item. History is left out; it lives
// in the database.
func Encode(item content.Item) ([]byte, error) {
	snapshot := item.Clone()
	snapshot.History = nil
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

func (s *Store) Put(ctx context.Context, item content.Item) (Snapshot, error) {
	payload, err := Encode(item)
	if err != nil {
		return Snapshot{}, err
	}
	key := ObjectKey(item.Kind, item.ID, item.Version)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return Snapshot{Key: key, Version: item.Version, Size: info.Size, StoredAt: time.Now().UTC()}, nil
}

// List returns the snapshots of one item, newest version first.
func (s *Store) List(ctx context.Context, kind content.Kind, id string) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectPrefix(kind, id),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", obj.Err)
		}
		version, ok := VersionFromKey(obj.Key)
		if !ok {
			continue
		}
		snapshots = append(snapshots, Snapshot{Key: obj.Key, Version: version, Size: obj.Size, StoredAt: obj.LastModified})
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Version > snapshots[j].Version })
	return snapshots, nil
}

// Get reads back the item stored for version.
func (s *Store) Get(ctx context.Context, kind content.Kind, id string, version int64) (content.Item, error) {
	key := ObjectKey(kind, id, version)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return content.Item{}, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	defer obj.Close()

	payload, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return content.Item{}, fmt.Errorf("%w: snapshot %s", content.ErrNotFound, key)
		}
		return content.Item{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	var item content.Item
	if err := json.Unmarshal(payload, &item); err != nil {
		return content.Item{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return item, nil
}
