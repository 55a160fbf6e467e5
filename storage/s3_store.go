package storage

import (
	"context"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
)

// S3Store keeps evidence artifacts in a single bucket on an
// S3-compatible backend, keyed by content id. Because the key is
// derived from the bytes, a second Put of identical content finds the
// existing object and writes nothing.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(client *minio.Client, bucket string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
	}
}

func (s *S3Store) Put(ctx context.Context, contentID string, r io.Reader, size int64) error {
	exists, err := s.Contains(ctx, contentID)
	if err != nil {
		return err
	}
	if exists {
		// Content addressing: same bytes, same key, nothing to do.
		return nil
	}
	_, err = s.client.PutObject(ctx, s.bucket, contentID, r, size,
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return &UnavailableError{Op: "put", Err: err}
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, contentID string) (io.ReadCloser, error) {
	// Stat first so unknown ids surface as ErrNotFound instead of
	// a lazy read error from the object stream.
	_, err := s.client.StatObject(ctx, s.bucket, contentID, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, &UnavailableError{Op: "get", Err: err}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, contentID, minio.GetObjectOptions{})
	if err != nil {
		return nil, &UnavailableError{Op: "get", Err: err}
	}
	return obj, nil
}

func (s *S3Store) Contains(ctx context.Context, contentID string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, contentID, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, &UnavailableError{Op: "stat", Err: err}
}

func isNoSuchKey(err error) bool {
	errResp := minio.ToErrorResponse(err)
	return errResp.StatusCode == http.StatusNotFound ||
		errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket"
}
