package pubsub

import (
	"context"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const defaultPublishTimeout = 15 * time.Second

var errNilResult = errors.New("pubsub: publisher returned no result")

// Message is a payload plus the attributes subscribers filter on. Messages
// sharing an OrderingKey are delivered in publish order when the topic was
// opened with ordering enabled.
type Message struct {
	Data        []byte
	Attributes  map[string]string
	OrderingKey string
}

// rawPublisher is the subset of *pubsub.Publisher that Topic drives.
type rawPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
	ResumePublish(orderingKey string)
	Stop()
}

// Topic publishes synchronously: Publish returns once the server acknowledged
// the message or the timeout elapsed.
type Topic struct {
	name    string
	pub     rawPublisher
	get     func(context.Context, *pubsub.PublishResult) (string, error)
	ordered bool
	timeout time.Duration
}

func newTopic(name string, pub *pubsub.Publisher, ordered bool, timeout time.Duration) *Topic {
	pub.EnableMessageOrdering = ordered
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Topic{name: name, pub: pub, get: resultGet, ordered: ordered, timeout: timeout}
}

func resultGet(ctx context.Context, r *pubsub.PublishResult) (string, error) {
	if r == nil {
		return "", errNilResult
	}
	return r.Get(ctx)
}

// Name is the full topic resource name.
func (t *Topic) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Publish sends msg and returns the server-assigned message id. A failed
// ordered publish pauses its key inside the client library, so the key is
// resumed here to let the next attempt through.
func (t *Topic) Publish(ctx context.Context, msg Message) (string, error) {
	if t == nil || t.pub == nil {
		return "", errors.New("pubsub: topic not initialized")
	}
	key := ""
	if t.ordered {
		key = msg.OrderingKey
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	id, err := t.get(ctx, t.pub.Publish(ctx, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: key,
	}))
	if err != nil && key != "" {
		t.pub.ResumePublish(key)
	}
	return id, err
}

// Stop flushes pending messages and releases the publisher goroutines.
func (t *Topic) Stop() {
	if t == nil || t.pub == nil {
		return
	}
	t.pub.Stop()
}
