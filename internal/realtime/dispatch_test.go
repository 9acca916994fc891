package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeenTarget(t *testing.T) {
	cases := []struct {
		raw   string
		shape SeenShape
		other string
	}{
		{`"u2"`, SeenBare, "u2"},
		{`{"to":"u2"}`, SeenTo, "u2"},
		{`{"otherUserId":"u3"}`, SeenOtherUserID, "u3"},
		{`{"userId":"u4"}`, SeenUserID, "u4"},
		{`{"to":"","otherUserId":"u5","userId":"u6"}`, SeenOtherUserID, "u5"},
		{`{"to":"u7","userId":"u8"}`, SeenTo, "u7"},
		{`{"to":17}`, SeenTo, "17"},
	}
	for _, tc := range cases {
		got, err := ParseSeenTarget([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, SeenTarget{Shape: tc.shape, OtherUserID: tc.other}, got, tc.raw)
	}

	for _, raw := range []string{`""`, `{}`, `{"from":"u1"}`, `null`, `42`, ``} {
		_, err := ParseSeenTarget([]byte(raw))
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), raw)
	}
}

func TestDispatch_AnonymousCanFollowPosts(t *testing.T) {
	env := newTestEnv(true)
	anon := env.connect("anon", "")
	ctx := context.Background()

	require.NoError(t, env.hub.Dispatch(ctx, anon, InJoinPost, []byte(`"p1"`)))
	env.hub.Reactions.BroadcastLikeUpdate("p1", PostLikeUpdate{Likes: 3, UserID: "u1", Action: ActionLiked})

	got := env.out.named("anon", EventPostLikeUpdated)
	require.Len(t, got, 1)
	assert.Equal(t, PostLikeUpdate{PostID: "p1", Likes: 3, UserID: "u1", Action: ActionLiked}, got[0].Data)
	assert.Equal(t, 0, env.hub.Registry.OnlineCount())

	require.NoError(t, env.hub.Dispatch(ctx, anon, InLeavePost, []byte(`"p1"`)))
	env.hub.Reactions.BroadcastLikeUpdate("p1", PostLikeUpdate{Likes: 2, Action: ActionUnliked})
	assert.Len(t, env.out.named("anon", EventPostLikeUpdated), 1)

	// numeric post ids are accepted too
	require.NoError(t, env.hub.Dispatch(ctx, anon, InJoinPost, []byte(`7`)))
	assert.Equal(t, []string{"anon"}, env.hub.Rooms.MembersOf(PostRoomID("7")))
}

func TestDispatch_AnonymousCannotMessage(t *testing.T) {
	env := newTestEnv(true)
	anon := env.connect("anon", "")
	ctx := context.Background()

	for _, ev := range []string{InJoinDM, InDMMessage, InDMSeen} {
		err := env.hub.Dispatch(ctx, anon, ev, []byte(`{"to":"u1","text":"hi"}`))
		var aerr *AuthError
		assert.True(t, errors.As(err, &aerr), ev)
	}
	assert.Equal(t, 0, env.msgs.rows("", "u1"))
}

func TestDispatch_DirectMessageFlow(t *testing.T) {
	env := newTestEnv(true)
	a := env.connect("a1", "a")
	b := env.connect("b1", "b")
	ctx := context.Background()

	require.NoError(t, env.hub.Dispatch(ctx, a, InJoinDM, []byte(`"b"`)))
	require.NoError(t, env.hub.Dispatch(ctx, b, InJoinDM, []byte(`"a"`)))
	assert.Equal(t, []string{"a1", "b1"}, env.hub.Rooms.MembersOf(PairRoomID("a", "b")))

	require.NoError(t, env.hub.Dispatch(ctx, a, InDMMessage, []byte(`{"to":"b","text":"hi"}`)))
	env.hub.Close()
	assert.Len(t, env.out.named("a1", EventDMMessage), 1)
	assert.Len(t, env.out.named("b1", EventDMMessage), 1)

	require.NoError(t, env.hub.Dispatch(ctx, b, InDMSeen, []byte(`{"otherUserId":"a"}`)))
	unread := env.out.named("b1", EventUnreadUpdate)
	require.Len(t, unread, 2)
	assert.Equal(t, 0, unread[1].Data)

	err := env.hub.Dispatch(ctx, a, InDMMessage, []byte(`{"to":"b"}`))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestDispatch_UnknownEvent(t *testing.T) {
	env := newTestEnv(true)
	s := env.connect("c1", "u1")
	err := env.hub.Dispatch(context.Background(), s, "dance", nil)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestDisconnectLeavesRooms(t *testing.T) {
	env := newTestEnv(true)
	s := env.connect("c1", "u1")
	require.NoError(t, env.hub.Dispatch(context.Background(), s, InJoinPost, []byte(`"p1"`)))
	require.NoError(t, env.hub.Dispatch(context.Background(), s, InJoinDM, []byte(`"u2"`)))

	env.hub.Disconnect(s)
	env.hub.Disconnect(s)
	assert.Empty(t, env.hub.Rooms.RoomsOf("c1"))
	assert.Empty(t, env.hub.Rooms.MembersOf(PostRoomID("p1")))
	assert.False(t, env.hub.Registry.IsOnline("u1"))
}

func TestReplyFor(t *testing.T) {
	assert.Equal(t, CodeValidation, ReplyFor("x", invalid("to", "required")).Code)
	assert.Equal(t, CodeUnauthorized, ReplyFor("x", &AuthError{ConnID: "c"}).Code)
	assert.Equal(t, CodePersistence, ReplyFor("x", persistence("op", errors.New("boom"))).Code)

	r := ReplyFor("dm_message", errors.New("boom"))
	assert.Equal(t, ErrorReply{Event: "dm_message", Code: CodeInternal, Message: "internal error"}, r)
}
