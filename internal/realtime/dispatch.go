package realtime

import (
	"context"
	"errors"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Inbound event names.
const (
	InJoinDM    = "join_dm"
	InDMMessage = "dm_message"
	InDMSeen    = "dm_seen"
	InJoinPost  = "join_post"
	InLeavePost = "leave_post"
)

// Error reply codes sent back on the originating connection.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodePersistence  = "persistence"
	CodeInternal     = "internal"
)

// Dispatch handles one inbound event of session s. data is the raw JSON of
// the event payload.
func (h *Hub) Dispatch(ctx context.Context, s *Session, event string, data []byte) error {
	payload := gjson.ParseBytes(data)

	switch event {
	case InJoinPost:
		return h.Reactions.Join(s.ID(), payload.String())
	case InLeavePost:
		return h.Reactions.Leave(s.ID(), payload.String())
	}

	userID := s.UserID()
	if userID == "" {
		return &AuthError{ConnID: s.ID()}
	}

	switch event {
	case InJoinDM:
		return h.DM.JoinDM(s.ID(), userID, payload.String())
	case InDMMessage:
		_, err := h.DM.Send(ctx, userID, payload.Get("to").String(), payload.Get("text").String())
		return err
	case InDMSeen:
		target, err := ParseSeenTarget(data)
		if err != nil {
			return err
		}
		_, err = h.DM.SeenByOtherUser(ctx, userID, target)
		return err
	default:
		h.logger.Debug("ignoring unknown event", zap.String("conn", s.ID()), zap.String("event", event))
		return invalid("event", "unknown event "+event)
	}
}

// ReplyFor builds the error event answering a failed inbound event.
func ReplyFor(event string, err error) ErrorReply {
	reply := ErrorReply{Event: event, Code: CodeInternal, Message: "internal error"}
	var (
		verr *ValidationError
		aerr *AuthError
		perr *PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		reply.Code, reply.Message = CodeValidation, verr.Error()
	case errors.As(err, &aerr):
		reply.Code, reply.Message = CodeUnauthorized, "authentication required"
	case errors.As(err, &perr):
		reply.Code, reply.Message = CodePersistence, "could not save, try again"
	}
	return reply
}
