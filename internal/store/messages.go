package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bloopsocial/bloop/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ realtime.MessageStore = (*Store)(nil)

func orderedPair(a, b string) (string, string) {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0], ids[1]
}

// CreateMessage stores a message, creating the pair conversation on first
// contact
func (s *Store) CreateMessage(ctx context.Context, from, to, text string) (*realtime.Message, error) {
	var row Message
	err := s.Transaction(ctx, func(ctx context.Context) error {
		conv, err := s.findOrCreateConversation(ctx, from, to)
		if err != nil {
			return err
		}
		row = Message{
			ID:             newID(),
			ConversationID: conv.ID,
			FromUserID:     from,
			ToUserID:       to,
			Text:           text,
			CreatedAt:      time.Now(),
		}
		if err := s.conn(ctx).Create(&row).Error; err != nil {
			return err
		}
		return s.conn(ctx).Model(&Conversation{}).
			Where("id = ?", conv.ID).
			Update("updated_at", row.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return toMessage(&row), nil
}

// findOrCreateConversation inserts the pair row unless it exists and reads it
// back, so concurrent first messages of a pair settle on one conversation.
func (s *Store) findOrCreateConversation(ctx context.Context, a, b string) (*Conversation, error) {
	lo, hi := orderedPair(a, b)
	conv := Conversation{ID: newID(), UserA: lo, UserB: hi}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
		DoNothing: true,
	}).Create(&conv).Error
	if err != nil {
		return nil, err
	}

	var stored Conversation
	if err := s.conn(ctx).Where("user_a = ? AND user_b = ?", lo, hi).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// CountUnreadMessages counts messages addressed to userID not yet read
func (s *Store) CountUnreadMessages(ctx context.Context, userID string) (int, error) {
	var n int64
	err := s.conn(ctx).Model(&Message{}).
		Where("to_user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return int(n), err
}

// MarkMessagesAsRead flags the unread messages of a conversation addressed
// to userID and returns how many changed
func (s *Store) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) (int, error) {
	res := s.conn(ctx).Model(&Message{}).
		Where("conversation_id = ? AND to_user_id = ? AND read_at IS NULL", conversationID, userID).
		Update("read_at", time.Now())
	return int(res.RowsAffected), res.Error
}

// FindConversationBetween returns the id of the pair conversation or ""
func (s *Store) FindConversationBetween(ctx context.Context, a, b string) (string, error) {
	lo, hi := orderedPair(a, b)
	var conv Conversation
	err := s.conn(ctx).Where("user_a = ? AND user_b = ?", lo, hi).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// ConversationParticipants returns both users of a conversation
func (s *Store) ConversationParticipants(ctx context.Context, conversationID string) (string, string, error) {
	var conv Conversation
	err := s.conn(ctx).Where("id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", realtime.ErrConversationNotFound
	}
	if err != nil {
		return "", "", err
	}
	return conv.UserA, conv.UserB, nil
}

// ListConversations returns the inbox of userID, latest activity first
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	var convs []*Conversation
	err := s.conn(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("updated_at desc").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	out := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		other := conv.UserA
		if other == userID {
			other = conv.UserB
		}
		sum := &ConversationSummary{ID: conv.ID, LastAt: conv.UpdatedAt}

		if u, err := s.GetUser(ctx, other); err == nil {
			sum.OtherUser = u
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		var last Message
		err := s.conn(ctx).Where("conversation_id = ?", conv.ID).Order("created_at desc").First(&last).Error
		switch {
		case err == nil:
			sum.LastMessage, sum.LastAt = last.Text, last.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}

		if err := s.conn(ctx).Model(&Message{}).
			Where("conversation_id = ? AND to_user_id = ? AND read_at IS NULL", conv.ID, userID).
			Count(&sum.Unread).Error; err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// MessagesBetween returns the messages of two users, oldest first
func (s *Store) MessagesBetween(ctx context.Context, a, b string, limit, offset int) ([]*realtime.Message, error) {
	convID, err := s.FindConversationBetween(ctx, a, b)
	if err != nil || convID == "" {
		return []*realtime.Message{}, err
	}

	q := s.conn(ctx).Where("conversation_id = ?", convID).Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var rows []*Message
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*realtime.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, toMessage(r))
	}
	return out, nil
}

func toMessage(r *Message) *realtime.Message {
	return &realtime.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		From:           r.FromUserID,
		To:             r.ToUserID,
		Text:           r.Text,
		CreatedAt:      r.CreatedAt,
	}
}
