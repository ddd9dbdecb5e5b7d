package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub events topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection and the domain events topic.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	events    *Topic
}

// NewClient connects to Pub/Sub and checks that the events topic exists. The
// topic is provisioned by infrastructure, never created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg}
	topic := c.TopicResourceName(cfg.EventsTopic)
	if topic == "" {
		_ = psClient.Close()
		return nil, errNoTopic
	}
	if err := c.lookupTopic(ctx, topic); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	c.events = newTopic(topic, psClient.Publisher(topic), cfg.Ordered, cfg.PublishTimeout)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":   topic,
			"ordered": cfg.Ordered,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) lookupTopic(ctx context.Context, topic string) error {
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", topic)
	default:
		return fmt.Errorf("checking topic %q: %w", topic, err)
	}
}

// Events returns the domain events topic.
func (c *Client) Events() *Topic {
	if c == nil {
		return nil
	}
	return c.events
}

// Ping looks up the events topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.lookupTopic(ctx, c.events.Name())
}

// Close stops the events publisher, flushing buffered messages, and then
// closes the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.events.Stop()
	return c.client.Close()
}

// TopicResourceName expands a bare topic id into projects/<p>/topics/<id>.
// Full resource names are returned unchanged.
func (c *Client) TopicResourceName(name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/"):
		return n
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/topics/" + n
}
