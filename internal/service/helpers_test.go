package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/ai"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/storage"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Teacher{}, &models.Assignment{}, &models.Student{}, &models.Essay{}))
	return db
}

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: make(map[string][]byte)}
}

func (m *memoryObjectStore) Put(_ context.Context, key string, body []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *memoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return body, nil
}

func (m *memoryObjectStore) PresignPut(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []EssayUpdatedEvent
	err    error
}

func (r *recordingPublisher) PublishEssayUpdated(_ context.Context, event EssayUpdatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Events() []EssayUpdatedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EssayUpdatedEvent(nil), r.events...)
}

type stubEvaluator struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   []string
}

func (s *stubEvaluator) EvaluateWord(_ context.Context, input ai.WordUsageInput) (ai.WordUsageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, input.Word)
	if s.failing[input.Word] {
		return ai.WordUsageResult{}, errors.New("model unavailable")
	}
	return ai.WordUsageResult{Word: input.Word, Correct: len(input.Word)%2 == 0, Comment: "checked " + input.Word}, nil
}

func strPtr(value string) *string {
	return &value
}
