package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestEventsFromInfoDecodesKeys(t *testing.T) {
	var record notification.Event
	record.EventName = "s3:ObjectCreated:Put"
	record.S3.Bucket.Name = "vocab-essays"
	record.S3.Object.Key = "essays/abc%2B1.txt"

	events := eventsFromInfo(notification.Info{Records: []notification.Event{record}})
	require.Len(t, events, 1)
	require.Equal(t, "vocab-essays", events[0].Bucket)
	require.Equal(t, "essays/abc+1.txt", events[0].Key)
	require.NoError(t, events[0].Err)
}

func TestEventsFromInfoCarriesCorrelationMetadata(t *testing.T) {
	var tagged, presigned notification.Event
	tagged.S3.Object.Key = "essays/one.txt"
	tagged.S3.Object.UserMetadata = map[string]string{"X-Amz-Meta-Correlation-Id": "req-77", "content-type": "text/plain"}
	presigned.S3.Object.Key = "essays/two.txt"

	events := eventsFromInfo(notification.Info{Records: []notification.Event{tagged, presigned}})
	require.Len(t, events, 2)
	require.Equal(t, "req-77", events[0].CorrelationID)
	require.Empty(t, events[1].CorrelationID)

	require.Equal(t, "req-8", correlationFromMetadata(map[string]string{"correlation-id": "req-8"}))
	require.Empty(t, correlationFromMetadata(map[string]string{"X-Amz-Meta-Correlation-Id": "not valid"}))
}

func TestEventsFromInfoSurfacesErrors(t *testing.T) {
	events := eventsFromInfo(notification.Info{Err: errors.New("connection reset")})
	require.Len(t, events, 1)
	require.Error(t, events[0].Err)
}

func TestTranslateErrorMapsMissingKey(t *testing.T) {
	err := translateError(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	require.ErrorIs(t, err, ErrObjectNotFound)

	err = translateError(errors.New("boom"))
	require.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	_, err := New(Config{Bucket: "vocab-essays"}, zerolog.Nop())
	require.Error(t, err)

	store, err := New(Config{Endpoint: "localhost:9000", Bucket: "vocab-essays", AccessKey: "a", SecretKey: "b"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "vocab-essays", store.Bucket())
}
