package handler

import (
	"errors"

	"github.com/bloopsocial/bloop/internal/common/errorx"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/bloopsocial/bloop/internal/store"
)

// DomainErrors maps realtime and store errors onto API errors
func DomainErrors(err error) *errorx.APIError {
	var verr *realtime.ValidationError
	if errors.As(err, &verr) {
		return errorx.ValidationError(verr.Field, verr.Reason)
	}

	var aerr *realtime.AuthError
	if errors.As(err, &aerr) {
		return errorx.ErrUnauthorized
	}

	if errors.Is(err, store.ErrNotFound) || errors.Is(err, realtime.ErrConversationNotFound) {
		return errorx.ErrResourceNotFound
	}

	if errors.Is(err, store.ErrMaxDepth) {
		return errorx.ErrInvalidInput.WithMessage(err.Error()).WithDetail("field", "parent_id")
	}

	var perr *realtime.PersistenceError
	if errors.As(err, &perr) {
		return errorx.ErrPersistence.WithDetail("op", perr.Op)
	}

	return nil
}
