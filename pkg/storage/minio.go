package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
)

// ErrObjectNotFound indicates the requested key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Config contains the connection settings for the essay bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// correlationMetadata is the user metadata key stamped on objects written with a correlated context.
const correlationMetadata = "Correlation-Id"

// ObjectEvent is a created-object notification for a single key. CorrelationID is set when the
// object was written by Put with a correlated context.
type ObjectEvent struct {
	Bucket        string
	Key           string
	Name          string
	CorrelationID string
	Err           error
}

// Store keeps essay text in a MinIO or S3 compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
	region string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

// New constructs a Store. The bucket is created lazily on first use.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage endpoint and bucket must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logger.With().Str("component", "object_store").Logger(),
	}, nil
}

// Bucket returns the bucket essays are written to.
func (s *Store) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.logger.Info().Str("bucket", s.bucket).Msg("bucket created")
	}

	s.bucketEnsured = true
	return nil
}

// Put writes the essay text under key.
func (s *Store) Put(ctx context.Context, key string, body []byte) error {
	if err := s.EnsureBucket(ctx); err != nil {
		return err
	}

	options := minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"}
	if id := logger.CorrelationID(ctx); id != "" {
		options.UserMetadata = map[string]string{correlationMetadata: id}
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), options)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	s.logger.Debug().Str("key", key).Str("etag", info.ETag).Int("size", len(body)).Msg("object stored")
	return nil
}

// Get reads the object stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	defer object.Close()

	body, err := io.ReadAll(object)
	if err != nil {
		return nil, translateError(err)
	}

	return body, nil
}

// PresignPut returns a URL a client can PUT essay text to directly.
func (s *Store) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}

	presigned, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}

	return presigned.String(), nil
}

// Listen streams object-created events for keys matching prefix and suffix until ctx is cancelled.
func (s *Store) Listen(ctx context.Context, prefix, suffix string) <-chan ObjectEvent {
	output := make(chan ObjectEvent)
	infos := s.client.ListenBucketNotification(ctx, s.bucket, prefix, suffix, []string{string(notification.ObjectCreatedAll)})

	go func() {
		defer close(output)
		for info := range infos {
			for _, event := range eventsFromInfo(info) {
				select {
				case output <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return output
}

func eventsFromInfo(info notification.Info) []ObjectEvent {
	if info.Err != nil {
		return []ObjectEvent{{Err: info.Err}}
	}

	events := make([]ObjectEvent, 0, len(info.Records))
	for _, record := range info.Records {
		events = append(events, ObjectEvent{
			Bucket:        record.S3.Bucket.Name,
			Key:           decodeKey(record.S3.Object.Key),
			Name:          record.EventName,
			CorrelationID: correlationFromMetadata(record.S3.Object.UserMetadata),
		})
	}
	return events
}

// correlationFromMetadata finds the correlation id in event user metadata, which S3 and MinIO
// report with an X-Amz-Meta- prefix and inconsistent casing.
func correlationFromMetadata(metadata map[string]string) string {
	for key, value := range metadata {
		name := strings.TrimPrefix(strings.ToLower(key), "x-amz-meta-")
		if name == strings.ToLower(correlationMetadata) {
			if id, ok := logger.NormalizeCorrelationID(value); ok {
				return id
			}
		}
	}
	return ""
}

// decodeKey reverses the URL encoding S3 applies to keys in event payloads.
func decodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

func translateError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrObjectNotFound
	default:
		return fmt.Errorf("failed to get object: %w", err)
	}
}
