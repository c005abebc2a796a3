package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/extractor/features/extraction"
	"nexus/extractor/internal/middleware"
)

type stubSubmitter struct {
	err   error
	urls  []string
	corrs []extraction.Correlation
	ctxs  []context.Context
}

func (s *stubSubmitter) Submit(ctx context.Context, rawURL string, corr extraction.Correlation) (*extraction.Extraction, error) {
	s.urls = append(s.urls, rawURL)
	s.corrs = append(s.corrs, corr)
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &extraction.Extraction{ID: "abc12345", Status: extraction.StatusPending}, nil
}

func TestTaskConsumerHandleMessage(t *testing.T) {
	sub := &stubSubmitter{}
	c := NewTaskConsumer(sub)

	msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{
		"url": "https://example.com/post",
		"channel_id": "C123",
		"thread_ref": "169.42",
		"correlation_id": "corr-1"
	}`))

	require.NoError(t, c.HandleMessage(msg))
	require.Len(t, sub.urls, 1)
	assert.Equal(t, "https://example.com/post", sub.urls[0])
	assert.Equal(t, extraction.Correlation{ChannelID: "C123", ThreadRef: "169.42"}, sub.corrs[0])
	assert.Equal(t, "corr-1", middleware.GetCorrelationID(sub.ctxs[0]))
}

// Malformed messages are dropped, not requeued: retrying a poison pill can
// never succeed.
func TestTaskConsumerPoisonPills(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{"empty body", nil},
		{"invalid json", []byte(`{not json`)},
		{"missing url", []byte(`{"channel_id": "C123"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &stubSubmitter{}
			c := NewTaskConsumer(sub)

			assert.NoError(t, c.HandleMessage(nsq.NewMessage(nsq.MessageID{}, tc.body)))
			assert.Empty(t, sub.urls)
		})
	}
}

func TestTaskConsumerSubmitErrorRequeues(t *testing.T) {
	sub := &stubSubmitter{err: errors.New("db down")}
	c := NewTaskConsumer(sub)

	msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{"url": "https://example.com/post"}`))
	assert.Error(t, c.HandleMessage(msg))
}
