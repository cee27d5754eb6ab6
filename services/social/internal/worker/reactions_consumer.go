package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/storycraft/social-interaction/internal/platform/events"
	"github.com/storycraft/social-interaction/internal/platform/metrics"
	"github.com/storycraft/social-interaction/services/social/internal/store"
)

const (
	SubjectReactionSet   = "social.commands.reaction.set"
	SubjectReactionUnset = "social.commands.reaction.unset"

	commandSubjects = "social.commands.reaction.*"
	durableName     = "social_reactions"
)

// ReactionCommand is the payload of social.commands.reaction.set|unset.
type ReactionCommand struct {
	UserID       string `json:"user_id"`
	ContentType  string `json:"content_type"`
	ContentID    string `json:"content_id"`
	ReactionType string `json:"reaction_type"`
}

// errInvalidCommand marks messages that can never succeed; they are
// terminated instead of redelivered.
var errInvalidCommand = errors.New("invalid reaction command")

// key validates the command the same way the HTTP API validates a reaction
// and returns it with canonical ids.
func (c ReactionCommand) key() (store.ReactionKey, error) {
	userID, ok := store.ParseID(c.UserID)
	if !ok {
		return store.ReactionKey{}, fmt.Errorf("%w: user_id must be a UUID", errInvalidCommand)
	}
	contentID, ok := store.ParseID(c.ContentID)
	if !ok {
		return store.ReactionKey{}, fmt.Errorf("%w: content_id must be a UUID", errInvalidCommand)
	}
	contentType, ok := store.ParseKind(c.ContentType)
	if !ok {
		return store.ReactionKey{}, fmt.Errorf("%w: content_type must match [a-z0-9_-]", errInvalidCommand)
	}
	reactionType, ok := store.ParseKind(c.ReactionType)
	if !ok {
		return store.ReactionKey{}, fmt.Errorf("%w: reaction_type must match [a-z0-9_-]", errInvalidCommand)
	}
	return store.ReactionKey{
		UserID:       userID,
		Target:       store.Target{ContentType: contentType, ContentID: contentID},
		ReactionType: reactionType,
	}, nil
}

// acker is the part of *nats.Msg the consumer settles messages with.
type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// ReactionConsumer applies reaction commands from JetStream through the
// ReactionStore. Create and delete are idempotent, so redelivery is safe.
type ReactionConsumer struct {
	JS        nats.JetStreamContext
	Reactions store.ReactionStore
	Events    *events.Publisher
	Metrics   *metrics.Collector
	Log       *zap.Logger

	BatchSize int
	MaxWait   time.Duration
}

// Run pull-subscribes and processes batches until ctx ends.
func (c *ReactionConsumer) Run(ctx context.Context) error {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 2 * time.Second
	}
	// The durable is left in place on exit so pending commands survive a
	// restart; closing the connection ends the subscription.
	sub, err := c.JS.PullSubscribe(commandSubjects, durableName)
	if err != nil {
		return fmt.Errorf("reaction consumer subscribe: %w", err)
	}
	c.Log.Info("reaction consumer started", zap.String("subject", commandSubjects), zap.String("durable", durableName))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(c.BatchSize, nats.MaxWait(c.MaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.Log.Warn("reaction consumer fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, m := range msgs {
			c.process(ctx, m.Subject, m.Data, m)
		}
	}
}

// process applies one message and settles it: Ack on success, Term on a
// payload that can never apply, Nak otherwise.
func (c *ReactionConsumer) process(ctx context.Context, subject string, data []byte, m acker) {
	action := strings.TrimPrefix(subject, "social.commands.reaction.")
	err := c.handle(ctx, subject, data)
	switch {
	case err == nil:
		c.Metrics.Command(action, "ok")
		if aerr := m.Ack(); aerr != nil {
			c.Log.Warn("reaction consumer ack failed", zap.Error(aerr))
		}
	case errors.Is(err, errInvalidCommand):
		c.Metrics.Command(action, "invalid")
		c.Log.Warn("dropping reaction command", zap.String("subject", subject), zap.Error(err))
		if aerr := m.Term(); aerr != nil {
			c.Log.Warn("reaction consumer term failed", zap.Error(aerr))
		}
	default:
		c.Metrics.Command(action, "error")
		c.Log.Error("reaction command failed", zap.String("subject", subject), zap.Error(err))
		if aerr := m.Nak(); aerr != nil {
			c.Log.Warn("reaction consumer nak failed", zap.Error(aerr))
		}
	}
}

func (c *ReactionConsumer) handle(ctx context.Context, subject string, data []byte) error {
	var cmd ReactionCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("%w: %v", errInvalidCommand, err)
	}
	k, err := cmd.key()
	if err != nil {
		return err
	}

	switch subject {
	case SubjectReactionSet:
		r, created, err := c.Reactions.Create(ctx, k)
		if err != nil {
			return err
		}
		if created {
			c.Metrics.ReactionWrite("create", "created")
			c.Events.Publish(events.SubjectReactionCreated, k.UserID, r)
		} else {
			c.Metrics.ReactionWrite("create", "existing")
		}
		return nil
	case SubjectReactionUnset:
		deleted, err := c.Reactions.Delete(ctx, k)
		if err != nil {
			return err
		}
		if deleted {
			c.Metrics.ReactionWrite("delete", "deleted")
			c.Events.Publish(events.SubjectReactionDeleted, k.UserID, cmd)
		} else {
			c.Metrics.ReactionWrite("delete", "absent")
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown subject %s", errInvalidCommand, subject)
	}
}
