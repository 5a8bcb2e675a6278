package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	applog "github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
	"github.com/lousydropout/vocab-recommendation-sub000/pkg/queue"
)

type stubProcessor struct {
	err         error
	jobs        []service.EssayJob
	deadline    bool
	correlation string
}

func (s *stubProcessor) Process(ctx context.Context, job service.EssayJob) (models.Essay, error) {
	s.jobs = append(s.jobs, job)
	_, s.deadline = ctx.Deadline()
	s.correlation = applog.CorrelationID(ctx)
	return models.Essay{ID: job.EssayID}, s.err
}

type recordedDelivery struct {
	settled []string
}

func (r *recordedDelivery) delivery(body string) queue.Delivery {
	return queue.Delivery{
		Body:    []byte(body),
		Attempt: 1,
		Ack: func() error {
			r.settled = append(r.settled, "ack")
			return nil
		},
		Retry: func() error {
			r.settled = append(r.settled, "retry")
			return nil
		},
		Reject: func() error {
			r.settled = append(r.settled, "reject")
			return nil
		},
	}
}

func TestEssayWorkerHandleOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		err       error
		result    string
		settled   string
		processed bool
	}{
		{name: "success", body: `{"essay_id":"e1","file_key":"essays/e1.txt"}`, result: OutcomeAck, settled: "ack", processed: true},
		{name: "already processed", body: `{"essay_id":"e1"}`, err: service.ErrAlreadyProcessed, result: OutcomeSkipped, settled: "ack", processed: true},
		{name: "transient failure", body: `{"essay_id":"e1"}`, err: errors.New("db down"), result: OutcomeRetry, settled: "retry", processed: true},
		{name: "malformed json", body: `{not json`, result: OutcomeDeadLetter, settled: "reject"},
		{name: "missing essay id", body: `{"file_key":"essays/x.txt"}`, result: OutcomeDeadLetter, settled: "reject"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processor := &stubProcessor{err: tc.err}
			worker := NewEssayWorker(nil, processor, time.Minute, zerolog.Nop())
			recorder := &recordedDelivery{}

			result := worker.Handle(context.Background(), recorder.delivery(tc.body))
			require.Equal(t, tc.result, result)
			require.Equal(t, []string{tc.settled}, recorder.settled)
			if tc.processed {
				require.Len(t, processor.jobs, 1)
				require.True(t, processor.deadline)
			} else {
				require.Empty(t, processor.jobs)
			}
		})
	}
}

type channelConsumer struct {
	deliveries chan queue.Delivery
	err        error
}

func (c channelConsumer) Consume(context.Context) (<-chan queue.Delivery, error) {
	return c.deliveries, c.err
}

func TestEssayWorkerRunDrainsUntilClosed(t *testing.T) {
	deliveries := make(chan queue.Delivery, 2)
	recorder := &recordedDelivery{}
	deliveries <- recorder.delivery(`{"essay_id":"e1"}`)
	deliveries <- recorder.delivery(`{"essay_id":"e2"}`)
	close(deliveries)

	processor := &stubProcessor{}
	worker := NewEssayWorker(channelConsumer{deliveries: deliveries}, processor, time.Minute, zerolog.Nop())

	err := worker.Run(context.Background())
	require.Error(t, err)
	require.Len(t, processor.jobs, 2)
	require.Equal(t, []string{"ack", "ack"}, recorder.settled)
}

func TestEssayWorkerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewEssayWorker(channelConsumer{deliveries: make(chan queue.Delivery)}, &stubProcessor{}, time.Minute, zerolog.Nop())
	require.NoError(t, worker.Run(ctx))
}

func TestEssayWorkerRunConsumeError(t *testing.T) {
	worker := NewEssayWorker(channelConsumer{err: errors.New("no channel")}, &stubProcessor{}, time.Minute, zerolog.Nop())
	require.Error(t, worker.Run(context.Background()))
}

func TestEssayWorkerLogsAndForwardsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	processor := &stubProcessor{}
	worker := NewEssayWorker(nil, processor, time.Minute, applog.NewWithWriter(&buf, "info"))
	recorder := &recordedDelivery{}

	result := worker.Handle(context.Background(), recorder.delivery(`{"essay_id":"e7","file_key":"essays/e7.txt","correlation_id":"req-55"}`))
	require.Equal(t, OutcomeAck, result)
	require.Equal(t, "req-55", processor.jobs[0].CorrelationID)
	require.Equal(t, "req-55", processor.correlation)
	require.Contains(t, buf.String(), `"correlation_id":"req-55"`)
	require.Contains(t, buf.String(), `"essay_id":"e7"`)
}
