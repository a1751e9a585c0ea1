package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

const (
	// StreamName is the name of the chat history stream.
	StreamName = "CHAT_HISTORY"

	// SubjectPrefix is the prefix for all chat history subjects.
	SubjectPrefix = "chat"

	fetchBatch = 100

	// tailGrowth scales the sequence span RecentWindow searches back from a
	// user's newest turn; the span starts at limit*tailGrowth and grows by the
	// same factor until it holds limit turns or reaches the stream head.
	tailGrowth = 4
)

// HistoryStore keeps each user's conversation as an append-only JetStream
// subject.
type HistoryStore struct {
	client *Client
	loc    *time.Location
	now    func() time.Time
	logger *logger.Logger
}

// NewHistoryStore creates a history store that stamps turns in loc.
func NewHistoryStore(client *Client, loc *time.Location, log *logger.Logger) *HistoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryStore{client: client, loc: loc, now: time.Now, logger: log}
}

// EnsureStream creates the history stream when it does not exist.
func (h *HistoryStore) EnsureStream(ctx context.Context) error {
	js := h.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Per-user scheduling assistant chat turns",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	h.logger.Info("created JetStream stream", zap.String("stream", StreamName))
	return nil
}

// userToken encodes userID into a single valid subject token.
func userToken(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// TurnSubject returns the subject a turn is published on.
func TurnSubject(userID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, userToken(userID), role)
}

// UserFilter returns the filter subject matching every turn of userID.
func UserFilter(userID string) string {
	return fmt.Sprintf("%s.%s.*", SubjectPrefix, userToken(userID))
}

// Append publishes one turn.
func (h *HistoryStore) Append(ctx context.Context, userID string, role model.Role, content string) error {
	turn := model.ChatTurn{
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: h.now().In(h.loc).Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal chat turn: %w", err)
	}

	if _, err := h.client.JetStream().Publish(ctx, TurnSubject(userID, role), data); err != nil {
		return fmt.Errorf("failed to publish chat turn: %w", err)
	}
	return nil
}

// RecentWindow returns at most limit turns for userID, oldest first. It reads
// backwards from the user's newest turn rather than replaying the whole
// subject.
func (h *HistoryStore) RecentWindow(ctx context.Context, userID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	stream, err := h.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up stream: %w", err)
	}
	last, err := lastUserSequence(ctx, stream, userID)
	if err != nil {
		return nil, err
	}
	if last == 0 {
		return nil, nil
	}
	first := stream.CachedInfo().State.FirstSeq

	span := uint64(limit) * tailGrowth
	for {
		start, atHead := tailStart(last, first, span)
		consumer, release, err := h.openConsumer(ctx, stream, userID, start)
		if err != nil {
			return nil, err
		}

		info, err := consumer.Info(ctx)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to read consumer info: %w", err)
		}
		pending := int(info.NumPending)
		if pending < limit && !atHead {
			release()
			span *= tailGrowth
			continue
		}

		window := newTurnWindow(limit)
		err = h.drain(consumer, pending, window)
		release()
		if err != nil {
			return nil, err
		}
		return window.turns(), nil
	}
}

// lastUserSequence returns the stream sequence of userID's newest turn, or 0
// when the user has none.
func lastUserSequence(ctx context.Context, stream jetstream.Stream, userID string) (uint64, error) {
	var last uint64
	for _, role := range []model.Role{model.RoleUser, model.RoleModel} {
		msg, err := stream.GetLastMsgForSubject(ctx, TurnSubject(userID, role))
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read last chat turn: %w", err)
		}
		last = max(last, msg.Sequence)
	}
	return last, nil
}

// tailStart returns where a read of the span sequences ending at last begins,
// and whether that start already covers the stream's first message.
func tailStart(last, first, span uint64) (uint64, bool) {
	if first == 0 {
		first = 1
	}
	if span == 0 || last < first+span {
		return first, true
	}
	return last - span + 1, false
}

func (h *HistoryStore) openConsumer(ctx context.Context, stream jetstream.Stream, userID string, start uint64) (jetstream.Consumer, func(), error) {
	consumer, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject:     UserFilter(userID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:       start,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	release := func() {
		name := consumer.CachedInfo().Name
		if err := stream.DeleteConsumer(context.WithoutCancel(ctx), name); err != nil {
			h.logger.Debug("failed to delete history consumer", zap.String("consumer", name), zap.Error(err))
		}
	}
	return consumer, release, nil
}

// drain fetches pending turns from consumer into window.
func (h *HistoryStore) drain(consumer jetstream.Consumer, pending int, window *turnWindow) error {
	for pending > 0 {
		batch, err := consumer.Fetch(min(pending, fetchBatch), jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return fmt.Errorf("failed to fetch chat turns: %w", err)
		}

		got := 0
		for msg := range batch.Messages() {
			got++
			var turn model.ChatTurn
			if err := json.Unmarshal(msg.Data(), &turn); err != nil {
				h.logger.Warn("skipping undecodable chat turn", zap.String("subject", msg.Subject()), zap.Error(err))
				continue
			}
			if meta, err := msg.Metadata(); err == nil {
				turn.ID = meta.Sequence.Stream
			}
			window.push(turn)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
			return fmt.Errorf("batch error: %w", err)
		}
		if got == 0 {
			break
		}
		pending -= got
	}
	return nil
}

// turnWindow keeps the last size turns pushed, in push order.
type turnWindow struct {
	buf  []model.ChatTurn
	next int
	full bool
}

func newTurnWindow(size int) *turnWindow {
	return &turnWindow{buf: make([]model.ChatTurn, size)}
}

func (w *turnWindow) push(t model.ChatTurn) {
	w.buf[w.next] = t
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.full = true
	}
}

func (w *turnWindow) turns() []model.ChatTurn {
	if !w.full {
		return append([]model.ChatTurn(nil), w.buf[:w.next]...)
	}
	out := make([]model.ChatTurn, 0, len(w.buf))
	out = append(out, w.buf[w.next:]...)
	return append(out, w.buf[:w.next]...)
}
