package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bloopsocial/bloop/internal/common/errorx"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/bloopsocial/bloop/internal/store"
)

func TestDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{&realtime.ValidationError{Field: "text", Reason: "required"}, "E4001", http.StatusBadRequest},
		{&realtime.AuthError{ConnID: "c1", Err: errors.New("bad")}, "E4010", http.StatusUnauthorized},
		{fmt.Errorf("get post: %w", store.ErrNotFound), "E4040", http.StatusNotFound},
		{realtime.ErrConversationNotFound, "E4040", http.StatusNotFound},
		{store.ErrMaxDepth, "E4001", http.StatusBadRequest},
		{&realtime.PersistenceError{Op: "insert", Err: errors.New("db")}, "E5002", http.StatusInternalServerError},
		{errors.New("boom"), "E5001", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := errorx.ConvertToAPIError(tc.err, DomainErrors)
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
		assert.Equal(t, tc.status, errorx.StatusOf(tc.err, DomainErrors))
	}
	assert.Nil(t, DomainErrors(errors.New("boom")))
}
