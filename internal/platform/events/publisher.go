// Package events publishes social domain events to NATS JetStream.
// Publishing is fire-and-forget: a write that succeeded in the store is never
// failed because the event could not be delivered.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Stream is the JetStream stream carrying every social.* subject.
const (
	Stream        = "SOCIAL"
	StreamSubject = "social.>"
	StreamMaxAge  = 7 * 24 * time.Hour
)

const (
	SubjectCommentCreated  = "social.comment.created"
	SubjectCommentUpdated  = "social.comment.updated"
	SubjectCommentDeleted  = "social.comment.deleted"
	SubjectReactionCreated = "social.reaction.created"
	SubjectReactionDeleted = "social.reaction.deleted"
)

// Event is the envelope sent on every social.* event subject.
type Event struct {
	EventID    string          `json:"event_id"`
	Subject    string          `json:"subject"`
	UserID     string          `json:"user_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// AsyncPublisher is the part of nats.JetStreamContext the publisher needs.
type AsyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publisher publishes events to JetStream.
// The zero value and a nil pointer are both safe no-op stubs.
type Publisher struct {
	js  AsyncPublisher
	log *zap.Logger
}

// New creates a Publisher. Pass js=nil to get a no-op stub.
func New(js AsyncPublisher, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log}
}

// Enabled reports whether events actually leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.js != nil
}

// Publish wraps data in an Event and sends it asynchronously.
// Failures are logged as warnings and never surface to the caller.
func (p *Publisher) Publish(subject, userID string, data any) {
	if !p.Enabled() {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		p.log.Warn("events: marshal payload failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		Subject:    subject,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal envelope failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, body, nats.MsgId(ev.EventID)); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
