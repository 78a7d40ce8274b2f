package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
)

const defaultPublishTimeout = 10 * time.Second

// Notification is the payload sent when a reviewer opts in on upload.
type Notification struct {
	SessionID    string             `json:"session_id"`
	DocumentID   int64              `json:"document_id"`
	DocumentName string             `json:"document_name"`
	DocumentType enums.DocumentType `json:"document_type"`
	Analysis     string             `json:"analysis,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Notifier delivers notifications. Failures never affect document state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubNotifier publishes notifications as JSON messages on one topic.
type PubSubNotifier struct {
	pub     publisher
	timeout time.Duration
}

// NewPubSubNotifier wraps a Pub/Sub publisher.
func NewPubSubNotifier(p *gcppubsub.Publisher, timeout time.Duration) (*PubSubNotifier, error) {
	if p == nil {
		return nil, errors.New("notifications publisher required")
	}
	return newPubSubNotifier(&gcpPublisher{Publisher: p}, timeout), nil
}

func newPubSubNotifier(p publisher, timeout time.Duration) *PubSubNotifier {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubNotifier{pub: p, timeout: timeout}
}

func (n *PubSubNotifier) Notify(ctx context.Context, note Notification) error {
	if note.OccurredAt.IsZero() {
		note.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type":    "document_uploaded",
			"document_id":   fmt.Sprintf("%d", note.DocumentID),
			"document_type": string(note.DocumentType),
			"occurred_at":   note.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	result := n.pub.Publish(publishCtx, msg)
	if result == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "publisher returned no result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish notification")
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
