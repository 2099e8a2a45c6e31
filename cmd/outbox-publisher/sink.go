package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

const defaultPublishTimeout = 15 * time.Second

type sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubSink keeps one publisher per topic. Publishers batch in background
// goroutines, so they are created once and stopped on Close.
type pubsubSink struct {
	source  topicSource
	timeout time.Duration

	mu     sync.Mutex
	topics map[string]*gcppubsub.Publisher
}

func newPubSubSink(source topicSource, timeout time.Duration) *pubsubSink {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &pubsubSink{source: source, timeout: timeout, topics: map[string]*gcppubsub.Publisher{}}
}

func (s *pubsubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return classifyPublishError(err)
}

func (s *pubsubSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.topics[topic]; ok {
		return pub
	}
	pub := s.source.Publisher(topic)
	if pub != nil {
		s.topics[topic] = pub
	}
	return pub
}

// Close flushes pending messages on every publisher.
func (s *pubsubSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.topics {
		pub.Stop()
		delete(s.topics, topic)
	}
}

// classifyPublishError treats errors that retrying cannot fix as permanent.
func classifyPublishError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition:
		return registry.NewNonRetryableError(err)
	}
	return err
}
