package outbox

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.OutboxRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) MarkProcessed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type producerMock struct {
	mock.Mock
}

func (m *producerMock) Publish(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func newPublisher(t *testing.T, st *storeMock, pr *producerMock) *Publisher {
	t.Helper()
	p, err := NewPublisher(PublisherConfig{
		Store:     st,
		Producer:  pr,
		Interval:  10 * time.Millisecond,
		BatchSize: 2,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func TestNewPublisher_Validation(t *testing.T) {
	st := new(storeMock)
	pr := new(producerMock)

	tests := []struct {
		name    string
		cfg     PublisherConfig
		wantErr string
	}{
		{name: "no store", cfg: PublisherConfig{Producer: pr, Interval: time.Second, BatchSize: 1}, wantErr: "outbox store is required"},
		{name: "no producer", cfg: PublisherConfig{Store: st, Interval: time.Second, BatchSize: 1}, wantErr: "event producer is required"},
		{name: "zero interval", cfg: PublisherConfig{Store: st, Producer: pr, BatchSize: 1}, wantErr: "interval must be positive"},
		{name: "zero batch", cfg: PublisherConfig{Store: st, Producer: pr, Interval: time.Second}, wantErr: "batch size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPublisher(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPublishBatch_PublishesAndMarks(t *testing.T) {
	st := new(storeMock)
	pr := new(producerMock)
	p := newPublisher(t, st, pr)

	records := []models.OutboxRecord{
		{ID: 1, EventID: "e1", AggregateID: "s1", Payload: []byte(`{"a":1}`)},
		{ID: 2, EventID: "e2", AggregateID: "s1", Payload: []byte(`{"a":2}`)},
	}
	st.On("GetPending", mock.Anything, 2).Return(records, nil).Once()
	pr.On("Publish", mock.Anything, "s1", []byte(`{"a":1}`)).Return(nil).Once()
	pr.On("Publish", mock.Anything, "s1", []byte(`{"a":2}`)).Return(nil).Once()
	st.On("MarkProcessed", mock.Anything, int64(1)).Return(nil).Once()
	st.On("MarkProcessed", mock.Anything, int64(2)).Return(nil).Once()

	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	st.AssertExpectations(t)
	pr.AssertExpectations(t)
}

func TestPublishBatch_FailedEventNotMarked(t *testing.T) {
	st := new(storeMock)
	pr := new(producerMock)
	p := newPublisher(t, st, pr)

	records := []models.OutboxRecord{
		{ID: 1, EventID: "e1", AggregateID: "s1"},
		{ID: 2, EventID: "e2", AggregateID: "s2"},
	}
	st.On("GetPending", mock.Anything, 2).Return(records, nil).Once()
	pr.On("Publish", mock.Anything, "s1", mock.Anything).Return(errors.New("broker down")).Once()
	pr.On("Publish", mock.Anything, "s2", mock.Anything).Return(nil).Once()
	st.On("MarkProcessed", mock.Anything, int64(2)).Return(nil).Once()

	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st.AssertNotCalled(t, "MarkProcessed", mock.Anything, int64(1))
}

func TestPublishBatch_StoreError(t *testing.T) {
	st := new(storeMock)
	pr := new(producerMock)
	p := newPublisher(t, st, pr)

	st.On("GetPending", mock.Anything, 2).Return(nil, errors.New("db down")).Once()

	_, err := p.PublishBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get pending records")
	pr.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_StopsOnCancel(t *testing.T) {
	st := new(storeMock)
	pr := new(producerMock)
	p := newPublisher(t, st, pr)

	st.On("GetPending", mock.Anything, 2).Return([]models.OutboxRecord{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	require.NoError(t, p.Publish(context.Background(), "k1", []byte(`{"to":"success"}`)))
	assert.Contains(t, buf.String(), `"event":{"to":"success"}`)
	assert.Contains(t, buf.String(), `"key":"k1"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, "k2", nil), context.Canceled)
}
