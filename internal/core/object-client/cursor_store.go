package objectclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/markdave123-py/drivesync/internal/core"
)

// S3CursorStore keeps the delta cursor as a single object, so runs on different
// hosts share it.
type S3CursorStore struct {
	objects core.ObjectClient
	bucket  string
	key     string
}

var _ core.CursorStore = (*S3CursorStore)(nil)

func NewS3CursorStore(objects core.ObjectClient, bucket, key string) (*S3CursorStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}
	if key == "" {
		return nil, fmt.Errorf("cursor key not set")
	}
	return &S3CursorStore{objects: objects, bucket: bucket, key: key}, nil
}

// Load returns "" when the object does not exist.
func (s *S3CursorStore) Load(ctx context.Context) (string, error) {
	b, err := s.objects.GetFile(ctx, s.bucket, s.key)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", nil
		}
		return "", fmt.Errorf("load cursor s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Reset deletes the cursor object. S3 deletes of missing keys succeed.
func (s *S3CursorStore) Reset(ctx context.Context) error {
	if err := s.objects.DeleteFile(ctx, s.bucket, s.key); err != nil {
		return fmt.Errorf("reset cursor s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3CursorStore) Save(ctx context.Context, cursor string) error {
	if _, err := s.objects.UploadFile(ctx, s.bucket, s.key, []byte(cursor), "text/plain"); err != nil {
		return fmt.Errorf("save cursor s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
