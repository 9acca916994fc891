package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bloopsocial/bloop/pkg/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DirectMessages persists direct messages and fans them out to the pair room
// and to the recipient's other connections.
type DirectMessages struct {
	store    MessageStore
	cache    UnreadCache
	registry *Registry
	rooms    *Rooms
	out      fanout
	logger   *zap.Logger

	unreadTimeout time.Duration
	pending       sync.WaitGroup

	// epoch advances on every invalidation; a count read before the last
	// invalidation is never written to the cache.
	cacheMu sync.Mutex
	epoch   uint64

	pushMu sync.Mutex
	pushes map[string]*pushSeq
}

// pushSeq orders the unread pushes of one user. A recount that finishes
// after a later one has been delivered is dropped.
type pushSeq struct {
	started   uint64
	delivered uint64
	running   int
}

// DirectMessagesOptions configures DirectMessages.
type DirectMessagesOptions struct {
	// Cache may be nil; counts then always come from the store.
	Cache UnreadCache
	// UnreadPushTimeout bounds the background unread recount after a send.
	UnreadPushTimeout time.Duration
}

func NewDirectMessages(store MessageStore, registry *Registry, rooms *Rooms, pusher Pusher,
	opts DirectMessagesOptions, logger *zap.Logger, rec Recorder) *DirectMessages {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UnreadPushTimeout <= 0 {
		opts.UnreadPushTimeout = 5 * time.Second
	}
	logger = logger.Named("realtime.dm")
	return &DirectMessages{
		store:         store,
		cache:         opts.Cache,
		registry:      registry,
		rooms:         rooms,
		out:           newFanout(pusher, logger, rec),
		logger:        logger,
		unreadTimeout: opts.UnreadPushTimeout,
		pushes:        make(map[string]*pushSeq),
	}
}

// JoinDM puts connID in the room shared by userID and otherUserID.
func (d *DirectMessages) JoinDM(connID, userID, otherUserID string) error {
	if otherUserID == "" {
		return invalid("otherUserId", "required")
	}
	d.rooms.Join(connID, PairRoomID(userID, otherUserID))
	return nil
}

// Send persists a message from one user to another and delivers it exactly
// once to every connection in their room and every other live connection of
// the recipient. The recipient's unread count is pushed in the background.
func (d *DirectMessages) Send(ctx context.Context, from, to, text string) (*Message, error) {
	if from == "" {
		return nil, invalid("from", "required")
	}
	if to == "" {
		return nil, invalid("to", "required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text", "must not be empty")
	}

	span := trace.Tracer("realtime").Start(ctx, "dm.send")
	defer span.End()
	span.WithAttrs(attribute.String("dm.from", from), attribute.String("dm.to", to))

	msg, err := d.store.CreateMessage(span.Ctx, from, to, text)
	if err != nil {
		span.Fail(err)
		d.logger.Error("failed to persist message",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
		return nil, persistence("create message", err)
	}

	ev := Event{Name: EventDMMessage, Data: msg}
	roomMembers := d.rooms.deliver(PairRoomID(from, to), ev)
	d.out.deliver(difference(d.registry.ConnectionsOf(to), roomMembers), ev)

	d.invalidate(span.Ctx, to)
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		uctx, cancel := context.WithTimeout(context.Background(), d.unreadTimeout)
		defer cancel()
		d.pushUnread(uctx, to)
	}()

	return msg, nil
}

// MarkRead flags conversationID as read for userID, tells the pair room and
// pushes the reader's new unread count. Unknown conversations and repeated
// calls return 0 without error.
func (d *DirectMessages) MarkRead(ctx context.Context, conversationID, userID string) (int, error) {
	if conversationID == "" {
		return 0, invalid("conversationId", "required")
	}
	if userID == "" {
		return 0, invalid("userId", "required")
	}

	span := trace.Tracer("realtime").Start(ctx, "dm.mark_read")
	defer span.End()
	span.WithAttrs(attribute.String("dm.conversation", conversationID))

	removed, err := d.store.MarkMessagesAsRead(span.Ctx, conversationID, userID)
	if err != nil {
		span.Fail(err)
		return 0, persistence("mark messages read", err)
	}

	a, b, err := d.store.ConversationParticipants(span.Ctx, conversationID)
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return removed, nil
	case err != nil:
		// messages are already flagged; only the receipt is lost
		d.logger.Warn("failed to resolve conversation participants",
			zap.String("conversation", conversationID), zap.Error(err))
	default:
		d.rooms.DeliverToRoom(PairRoomID(a, b), Event{Name: EventDMSeen, Data: DMSeen{
			ConversationID: conversationID,
			UserID:         userID,
			UnreadRemoved:  removed,
		}})
	}

	d.invalidate(span.Ctx, userID)
	d.pushUnread(span.Ctx, userID)
	return removed, nil
}

// SeenByOtherUser is the socket form of MarkRead: the reader names the other
// participant instead of the conversation. Only the reader's own
// connections receive the new unread count.
func (d *DirectMessages) SeenByOtherUser(ctx context.Context, userID string, target SeenTarget) (int, error) {
	if userID == "" {
		return 0, invalid("userId", "required")
	}
	if target.OtherUserID == "" {
		return 0, invalid("otherUserId", "required")
	}

	convID, err := d.store.FindConversationBetween(ctx, userID, target.OtherUserID)
	if err != nil {
		return 0, persistence("find conversation", err)
	}

	removed := 0
	if convID == "" {
		d.logger.Debug("no conversation to mark as seen",
			zap.String("user", userID), zap.String("other", target.OtherUserID))
	} else {
		removed, err = d.store.MarkMessagesAsRead(ctx, convID, userID)
		if err != nil {
			return 0, persistence("mark messages read", err)
		}
	}

	d.invalidate(ctx, userID)
	d.pushUnread(ctx, userID)
	return removed, nil
}

// UnreadCount returns userID's unread message count, through the cache when
// one is configured.
func (d *DirectMessages) UnreadCount(ctx context.Context, userID string) (int, error) {
	if d.cache == nil {
		return d.countUnread(ctx, userID)
	}
	if n, ok, err := d.cache.Get(ctx, userID); err == nil && ok {
		return n, nil
	} else if err != nil {
		d.logger.Warn("unread cache read failed", zap.String("user", userID), zap.Error(err))
	}

	d.cacheMu.Lock()
	epoch := d.epoch
	d.cacheMu.Unlock()

	n, err := d.countUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if d.epoch != epoch {
		return n, nil
	}
	if err := d.cache.Set(ctx, userID, n); err != nil {
		d.logger.Warn("unread cache write failed", zap.String("user", userID), zap.Error(err))
	}
	return n, nil
}

// Wait blocks until background unread pushes started by Send have finished.
func (d *DirectMessages) Wait() {
	d.pending.Wait()
}

func (d *DirectMessages) countUnread(ctx context.Context, userID string) (int, error) {
	n, err := d.store.CountUnreadMessages(ctx, userID)
	if err != nil {
		return 0, persistence("count unread messages", err)
	}
	return n, nil
}

// pushUnread recounts userID's unread messages from the store and pushes the
// result to every connection of the user.
func (d *DirectMessages) pushUnread(ctx context.Context, userID string) {
	if len(d.registry.ConnectionsOf(userID)) == 0 {
		return
	}
	seq := d.beginPush(userID)
	n, err := d.countUnread(ctx, userID)
	if err != nil {
		d.logger.Error("failed to count unread messages", zap.String("user", userID), zap.Error(err))
		d.finishPush(userID, seq, nil)
		return
	}
	d.finishPush(userID, seq, func() {
		d.out.deliver(d.registry.ConnectionsOf(userID), Event{Name: EventUnreadUpdate, Data: n})
	})
}

func (d *DirectMessages) beginPush(userID string) uint64 {
	d.pushMu.Lock()
	defer d.pushMu.Unlock()
	p, ok := d.pushes[userID]
	if !ok {
		p = &pushSeq{}
		d.pushes[userID] = p
	}
	p.started++
	p.running++
	return p.started
}

// finishPush runs deliver unless a later recount of userID was delivered first.
func (d *DirectMessages) finishPush(userID string, seq uint64, deliver func()) {
	d.pushMu.Lock()
	defer d.pushMu.Unlock()
	p, ok := d.pushes[userID]
	if !ok {
		return
	}
	if p.running--; p.running == 0 {
		delete(d.pushes, userID)
	}
	if deliver != nil && seq > p.delivered {
		p.delivered = seq
		deliver()
	}
}

func (d *DirectMessages) invalidate(ctx context.Context, userID string) {
	if d.cache == nil {
		return
	}
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.epoch++
	if err := d.cache.Invalidate(ctx, userID); err != nil {
		d.logger.Warn("unread cache invalidation failed", zap.String("user", userID), zap.Error(err))
	}
}

// difference returns the ids of a that are not in b.
func difference(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	skip := make(map[string]struct{}, len(b))
	for _, id := range b {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, id := range a {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
