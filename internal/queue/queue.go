package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/model"
)

// TopicCampaignEvents carries a model.CampaignEvent for every lifecycle transition.
const TopicCampaignEvents = "campaign_events"

const defaultMaxRetries = 3

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
	Close() error
}

// InMemoryQueue delivers to in-process subscribers with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	wg       sync.WaitGroup
	closed   bool
	logger   *zap.Logger

	// Backoff is multiplied by the attempt number between retries.
	Backoff    time.Duration
	MaxRetries int
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		logger:     logging.OrNop(logger),
		Backoff:    500 * time.Millisecond,
		MaxRetries: defaultMaxRetries,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.MaxRetries}
		q.wg.Add(1)
		go q.processJob(handler, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	defer q.wg.Done()

	for {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			q.logger.Error("job permanently failed",
				zap.String("topic", job.Topic), zap.Int("attempts", job.RetryCount), zap.Error(err))
			return // no requeue
		}
		q.logger.Warn("job failed, retrying",
			zap.String("topic", job.Topic), zap.Int("attempt", job.RetryCount), zap.Error(err))

		// linear backoff before retry
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close rejects further publishes and waits for in-flight jobs.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// DecodeEvent accepts an event published in-process or its JSON encoding
// as delivered by a broker.
func DecodeEvent(payload any) (model.CampaignEvent, error) {
	var ev model.CampaignEvent
	switch p := payload.(type) {
	case model.CampaignEvent:
		return p, nil
	case *model.CampaignEvent:
		return *p, nil
	case json.RawMessage:
		return ev, json.Unmarshal(p, &ev)
	case []byte:
		return ev, json.Unmarshal(p, &ev)
	default:
		return ev, fmt.Errorf("unexpected payload type %T", payload)
	}
}

// StartLifecycleSubscriber logs every campaign event published on q. The
// optional sink sees each decoded event.
func StartLifecycleSubscriber(q Queue, logger *zap.Logger, sink func(model.CampaignEvent)) error {
	logger = logging.OrNop(logger)
	return q.Subscribe(TopicCampaignEvents, func(payload any) error {
		ev, err := DecodeEvent(payload)
		if err != nil {
			// malformed events are dropped, retrying cannot fix them
			logger.Warn("invalid campaign event", zap.Error(err))
			return nil
		}
		logger.Info("campaign event",
			zap.String("type", ev.Type),
			zap.String("campaign_id", ev.CampaignID),
			zap.String("family_id", ev.FamilyID),
			zap.String("status", string(ev.Status)),
			zap.String("reason", ev.Reason),
		)
		if sink != nil {
			sink(ev)
		}
		return nil
	})
}
