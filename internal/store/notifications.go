package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bloopsocial/bloop/internal/realtime"
)

var _ realtime.NotificationStore = (*Store)(nil)

// InsertNotification stores a notification and returns it with the
// recipient and sender projections joined in
func (s *Store) InsertNotification(ctx context.Context, in *realtime.NotificationInput) (*realtime.Notification, error) {
	meta := "{}"
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, err
		}
		meta = string(raw)
	}

	row := Notification{
		ID:        newID(),
		UserID:    in.UserID,
		SenderID:  in.SenderID,
		Type:      string(in.Type),
		RefID:     in.RefID,
		RefType:   in.RefType,
		Message:   in.Message,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return s.withProfiles(ctx, &row)
}

// SelectNotificationWithSender loads one notification with its projections
func (s *Store) SelectNotificationWithSender(ctx context.Context, id string) (*realtime.Notification, error) {
	var row Notification
	if err := s.conn(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return s.withProfiles(ctx, &row)
}

// MarkNotificationSeen flags one notification owned by userID. Rows of
// other users are left alone and nil is returned.
func (s *Store) MarkNotificationSeen(ctx context.Context, id, userID string) (*realtime.Notification, error) {
	res := s.conn(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_seen", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.SelectNotificationWithSender(ctx, id)
}

// MarkAllNotificationsSeen flags every unseen notification of userID and
// returns the flagged rows
func (s *Store) MarkAllNotificationsSeen(ctx context.Context, userID string) ([]*realtime.Notification, error) {
	var rows []*Notification
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.conn(ctx).
			Where("user_id = ? AND is_seen = ?", userID, false).
			Order("created_at desc").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
			r.IsSeen = true
		}
		return s.conn(ctx).Model(&Notification{}).
			Where("id IN ?", ids).
			Update("is_seen", true).Error
	})
	if err != nil {
		return nil, err
	}
	return s.withProfilesAll(ctx, rows)
}

// ListNotifications returns the notifications of userID, newest first
func (s *Store) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*realtime.Notification, error) {
	q := s.conn(ctx).Where("user_id = ?", userID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var rows []*Notification
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.withProfilesAll(ctx, rows)
}

// CountUnseenNotifications counts the unseen notifications of userID
func (s *Store) CountUnseenNotifications(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_seen = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (s *Store) withProfilesAll(ctx context.Context, rows []*Notification) ([]*realtime.Notification, error) {
	out := make([]*realtime.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := s.withProfiles(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) withProfiles(ctx context.Context, r *Notification) (*realtime.Notification, error) {
	n := &realtime.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		SenderID:  r.SenderID,
		Type:      realtime.NotificationType(r.Type),
		RefID:     r.RefID,
		RefType:   r.RefType,
		Message:   r.Message,
		Metadata:  map[string]any{},
		CreatedAt: r.CreatedAt,
		IsSeen:    r.IsSeen,
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &n.Metadata); err != nil {
			s.logger.Warn("ignoring malformed notification metadata")
			n.Metadata = map[string]any{}
		}
	}

	var err error
	if n.Recipient, err = s.profile(ctx, r.UserID); err != nil {
		return nil, err
	}
	if n.Sender, err = s.profile(ctx, r.SenderID); err != nil {
		return nil, err
	}
	return n, nil
}

// profile returns nil for an empty or unknown id
func (s *Store) profile(ctx context.Context, userID string) (*realtime.Profile, error) {
	if userID == "" {
		return nil, nil
	}
	var u User
	err := s.conn(ctx).Where("id = ?", userID).Limit(1).Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, nil
	}
	return u.Profile(), nil
}
