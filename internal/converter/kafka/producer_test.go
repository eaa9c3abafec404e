package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "converter.session-events"

func newTestProducer(t testing.TB) *Producer {
	t.Helper()
	p, err := NewProducer(ProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   testTopic,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func TestNewProducer_AppliesDefaults(t *testing.T) {
	p := newTestProducer(t)

	assert.Equal(t, testTopic, p.config.Topic)
	assert.Equal(t, 3, p.config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, p.config.RetryBackoff)
	assert.Equal(t, 10*time.Second, p.config.WriteTimeout)
	assert.Equal(t, 100, p.config.BatchSize)
	assert.False(t, p.config.Async)

	assert.Equal(t, testTopic, p.writer.Topic)
	assert.Equal(t, kafkago.RequireAll, p.writer.RequiredAcks)
}

func TestNewProducer_KeepsExplicitSettings(t *testing.T) {
	p, err := NewProducer(ProducerConfig{
		Brokers:      []string{"kafka-1:9092", "kafka-2:9092"},
		Topic:        testTopic,
		MaxRetries:   5,
		RetryBackoff: 250 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		BatchSize:    10,
		Async:        true,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, p.config.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, p.config.RetryBackoff)
	assert.Equal(t, 2*time.Second, p.writer.WriteTimeout)
	assert.Equal(t, 10, p.writer.BatchSize)
	assert.True(t, p.writer.Async)
}

func TestNewProducer_Validation(t *testing.T) {
	valid := func() ProducerConfig {
		return ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: testTopic}
	}

	tests := []struct {
		name    string
		mutate  func(*ProducerConfig)
		wantErr string
	}{
		{"no brokers", func(c *ProducerConfig) { c.Brokers = nil }, "brokers list is empty"},
		{"no topic", func(c *ProducerConfig) { c.Topic = "" }, "topic is empty"},
		{"negative retries", func(c *ProducerConfig) { c.MaxRetries = -1 }, "max_retries cannot be negative"},
		{"negative backoff", func(c *ProducerConfig) { c.RetryBackoff = -time.Second }, "retry_backoff cannot be negative"},
		{"negative timeout", func(c *ProducerConfig) { c.WriteTimeout = -time.Second }, "write_timeout cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			p, err := NewProducer(cfg)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("write: %w", context.DeadlineExceeded), false},
		{errors.New("dial tcp 127.0.0.1:9092: connect: connection refused"), true},
		{errors.New("read: i/o timeout"), true},
		{errors.New("Message too large for topic"), false},
		{errors.New("SASL authentication failed"), false},
		{kafkago.LeaderNotAvailable, true},
		{kafkago.MessageSizeTooLarge, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetriableError(tt.err))
		})
	}
}

func TestProducer_Metrics(t *testing.T) {
	p := newTestProducer(t)

	assert.Equal(t, Metrics{}, p.GetMetrics())

	// Duration without any published message must not divide by zero.
	p.metrics.PublishDuration.Add(int64(40 * time.Millisecond))
	assert.Zero(t, p.GetMetrics().AvgPublishTime)

	p.metrics.MessagesPublished.Add(4)
	p.metrics.MessagesFailed.Add(1)
	p.metrics.RetriesTotal.Add(2)

	assert.Equal(t, Metrics{
		MessagesPublished: 4,
		MessagesFailed:    1,
		RetriesTotal:      2,
		AvgPublishTime:    10 * time.Millisecond,
	}, p.GetMetrics())
}

func TestProducer_Closed(t *testing.T) {
	p := newTestProducer(t)
	require.NoError(t, p.Close())

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")

	ctx := context.Background()
	event := []byte(`{"event_id":"e-1","to":"converting"}`)

	err = p.Publish(ctx, "e-1", event)
	assert.ErrorContains(t, err, "producer is closed")

	err = p.PublishBatch(ctx, []Message{{Key: "e-1", Value: event}, {Key: "e-2", Value: event}})
	assert.ErrorContains(t, err, "producer is closed")

	assert.ErrorContains(t, p.HealthCheck(ctx), "producer is closed")
}

func TestProducer_PublishBatchEmpty(t *testing.T) {
	p := newTestProducer(t)
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Equal(t, int64(0), p.GetMetrics().MessagesPublished)
}

func TestProducer_PublishCanceledContext(t *testing.T) {
	p, err := NewProducer(ProducerConfig{
		Brokers:      []string{"127.0.0.1:1"},
		Topic:        testTopic,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.Publish(ctx, "e-1", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, int64(1), p.GetMetrics().MessagesFailed)
}

func BenchmarkProducer_GetMetrics(b *testing.B) {
	p := newTestProducer(b)
	p.metrics.MessagesPublished.Add(1000)
	p.metrics.PublishDuration.Add(int64(time.Second))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.GetMetrics()
	}
}
