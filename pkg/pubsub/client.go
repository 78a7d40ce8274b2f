package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

// Review notifications are sent one document at a time, so batching only
// adds latency.
const (
	publishDelayThreshold = 10 * time.Millisecond
	publishCountThreshold = 1
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notifications topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection and the review notifications publisher.
type Client struct {
	client    *pubsub.Client
	projectID string
	topic     string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails fast when the notifications topic
// is missing. PUBSUB_EMULATOR_HOST is honoured by the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.NotificationsConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errNoTopic
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     psClient,
		projectID:  projectID,
		topic:      cfg.Topic,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.checkTopic(ctx, cfg.Topic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "topic", c.topicResourceName(cfg.Topic)), "pubsub client initialized")
	return c, nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", fullName)
	default:
		return fmt.Errorf("checking topic %q: %w", fullName, err)
	}
}

// Publisher returns the cached publisher for a topic id or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p
	}
	p := c.client.Publisher(fullName)
	p.PublishSettings.DelayThreshold = publishDelayThreshold
	p.PublishSettings.CountThreshold = publishCountThreshold
	c.publishers[fullName] = p
	return p
}

// NotificationsPublisher returns the publisher for DOCREVIEW_NOTIFICATIONS_TOPIC.
func (c *Client) NotificationsPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.topic)
}

// Ping backs the readiness probe by re-reading the notifications topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkTopic(ctx, c.topic)
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
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
