package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Validation(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()

	cases := []struct{ from, to, text, field string }{
		{"", "u2", "hi", "from"},
		{"u1", "", "hi", "to"},
		{"u1", "u2", "   ", "text"},
	}
	for _, tc := range cases {
		_, err := env.hub.DM.Send(ctx, tc.from, tc.to, tc.text)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), tc.field)
		assert.Equal(t, tc.field, verr.Field)
	}
	assert.Equal(t, 0, env.msgs.rows("u1", "u2"))
}

// U1 has two connections and only one of them joined the thread room.
func TestSend_MultiDeviceRecipient(t *testing.T) {
	env := newTestEnv(true)
	env.connect("c1", "u1")
	env.connect("c2", "u1")
	env.connect("s1", "u2")
	require.NoError(t, env.hub.DM.JoinDM("c1", "u1", "u2"))

	msg, err := env.hub.DM.Send(context.Background(), "u2", "u1", "hi")
	require.NoError(t, err)
	env.hub.Close()

	assert.Equal(t, 1, env.msgs.rows("u2", "u1"))
	for _, conn := range []string{"c1", "c2"} {
		got := env.out.named(conn, EventDMMessage)
		require.Len(t, got, 1, conn)
		assert.Equal(t, msg.ID, got[0].Data.(*Message).ID)

		unread := env.out.named(conn, EventUnreadUpdate)
		require.Len(t, unread, 1, conn)
		assert.Equal(t, 1, unread[0].Data)
	}
	// the sender did not join the room and is not the recipient
	assert.Empty(t, env.out.named("s1", EventDMMessage))
	assert.Empty(t, env.out.named("s1", EventUnreadUpdate))
}

func TestSend_NeverDeliversTwice(t *testing.T) {
	env := newTestEnv(true)
	env.connect("a1", "a")
	env.connect("b1", "b")
	env.connect("b2", "b")
	env.connect("b3", "b")
	for _, c := range []struct{ conn, user, other string }{
		{"a1", "a", "b"}, {"b1", "b", "a"}, {"b2", "b", "a"},
	} {
		require.NoError(t, env.hub.DM.JoinDM(c.conn, c.user, c.other))
	}

	_, err := env.hub.DM.Send(context.Background(), "a", "b", "hello")
	require.NoError(t, err)
	env.hub.Close()

	for _, conn := range []string{"a1", "b1", "b2", "b3"} {
		assert.Len(t, env.out.named(conn, EventDMMessage), 1, conn)
	}
	assert.Equal(t, 4, env.out.total(EventDMMessage))
	assert.Equal(t, 3, env.out.total(EventUnreadUpdate))
}

func TestSend_StaleConnectionDoesNotAbortFanout(t *testing.T) {
	env := newTestEnv(true)
	env.connect("b1", "b")
	env.connect("b2", "b")
	env.out.kill("b1")

	_, err := env.hub.DM.Send(context.Background(), "a", "b", "hello")
	require.NoError(t, err)
	env.hub.Close()

	assert.Empty(t, env.out.named("b1", EventDMMessage))
	assert.Len(t, env.out.named("b2", EventDMMessage), 1)
}

func TestSend_PersistenceFailureDeliversNothing(t *testing.T) {
	env := newTestEnv(true)
	env.connect("b1", "b")
	require.NoError(t, env.hub.DM.JoinDM("b1", "b", "a"))
	env.msgs.fail = errors.New("db down")

	_, err := env.hub.DM.Send(context.Background(), "a", "b", "hello")
	env.hub.Close()

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, env.out.total(EventDMMessage))
	assert.Equal(t, 0, env.out.total(EventUnreadUpdate))
}

func TestSend_OfflineRecipient(t *testing.T) {
	env := newTestEnv(true)
	msg, err := env.hub.DM.Send(context.Background(), "a", "b", "hello")
	require.NoError(t, err)
	env.hub.Close()

	assert.Equal(t, "a", msg.From)
	assert.Equal(t, 1, env.msgs.rows("a", "b"))
	assert.Equal(t, 0, env.out.total(EventDMMessage))
}

func TestMarkRead_IsIdempotent(t *testing.T) {
	env := newTestEnv(true)
	env.connect("a1", "a")
	env.connect("b1", "b")
	require.NoError(t, env.hub.DM.JoinDM("a1", "a", "b"))
	ctx := context.Background()

	msg, err := env.hub.DM.Send(ctx, "a", "b", "one")
	require.NoError(t, err)
	_, err = env.hub.DM.Send(ctx, "a", "b", "two")
	require.NoError(t, err)
	env.hub.Close()

	removed, err := env.hub.DM.MarkRead(ctx, msg.ConversationID, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = env.hub.DM.MarkRead(ctx, msg.ConversationID, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	seen := env.out.named("a1", EventDMSeen)
	require.Len(t, seen, 2)
	assert.Equal(t, DMSeen{ConversationID: msg.ConversationID, UserID: "b", UnreadRemoved: 2}, seen[0].Data)

	unread := env.out.named("b1", EventUnreadUpdate)
	require.NotEmpty(t, unread)
	assert.Equal(t, 0, unread[len(unread)-1].Data)
}

func TestMarkRead_UnknownConversation(t *testing.T) {
	env := newTestEnv(true)
	removed, err := env.hub.DM.MarkRead(context.Background(), "missing", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = env.hub.DM.MarkRead(context.Background(), "", "u1")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSeenByOtherUser_PushesOnlyToReader(t *testing.T) {
	env := newTestEnv(true)
	env.connect("a1", "a")
	env.connect("b1", "b")
	env.connect("b2", "b")
	require.NoError(t, env.hub.DM.JoinDM("a1", "a", "b"))
	ctx := context.Background()

	_, err := env.hub.DM.Send(ctx, "a", "b", "one")
	require.NoError(t, err)
	env.hub.Close()

	removed, err := env.hub.DM.SeenByOtherUser(ctx, "b", SeenTarget{Shape: SeenBare, OtherUserID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	for _, conn := range []string{"b1", "b2"} {
		unread := env.out.named(conn, EventUnreadUpdate)
		require.Len(t, unread, 2, conn)
		assert.Equal(t, 0, unread[1].Data)
	}
	assert.Empty(t, env.out.named("a1", EventUnreadUpdate))
	assert.Empty(t, env.out.named("a1", EventDMSeen))
}

func TestSeenByOtherUser_NoConversation(t *testing.T) {
	env := newTestEnv(true)
	env.connect("b1", "b")

	removed, err := env.hub.DM.SeenByOtherUser(context.Background(), "b", SeenTarget{OtherUserID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Len(t, env.out.named("b1", EventUnreadUpdate), 1)
}

func TestUnreadCount_UsesCache(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()
	_, err := env.hub.DM.Send(ctx, "a", "b", "one")
	require.NoError(t, err)
	env.hub.Close()

	n, err := env.hub.DM.UnreadCount(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a stale cached value is served until the next write invalidates it
	require.NoError(t, env.cache.Set(ctx, "b", 7))
	n, _ = env.hub.DM.UnreadCount(ctx, "b")
	assert.Equal(t, 7, n)

	_, err = env.hub.DM.Send(ctx, "a", "b", "two")
	require.NoError(t, err)
	env.hub.Close()
	n, _ = env.hub.DM.UnreadCount(ctx, "b")
	assert.Equal(t, 2, n)
}

func TestSend_LateRecountIsNotPushedOrCached(t *testing.T) {
	env := newTestEnv(true)
	env.connect("b1", "b")
	ctx := context.Background()

	hold := env.msgs.holdNextCount()
	_, err := env.hub.DM.Send(ctx, "a", "b", "one")
	require.NoError(t, err)
	<-hold.entered

	_, err = env.hub.DM.Send(ctx, "a", "b", "two")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(env.out.named("b1", EventUnreadUpdate)) == 1
	}, time.Second, 5*time.Millisecond)

	close(hold.release)
	env.hub.Close()

	unread := env.out.named("b1", EventUnreadUpdate)
	require.Len(t, unread, 1)
	assert.Equal(t, 2, unread[0].Data)

	_, cached, _ := env.cache.Get(ctx, "b")
	assert.False(t, cached)
	n, err := env.hub.DM.UnreadCount(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUnreadCount_ReadRacingSendIsNotCached(t *testing.T) {
	env := newTestEnv(true)
	ctx := context.Background()
	_, err := env.hub.DM.Send(ctx, "a", "b", "one")
	require.NoError(t, err)
	env.hub.Close()

	hold := env.msgs.holdNextCount()
	done := make(chan int)
	go func() {
		n, _ := env.hub.DM.UnreadCount(ctx, "b")
		done <- n
	}()
	<-hold.entered

	_, err = env.hub.DM.Send(ctx, "a", "b", "two")
	require.NoError(t, err)
	env.hub.Close()
	close(hold.release)
	assert.Equal(t, 1, <-done)

	_, cached, _ := env.cache.Get(ctx, "b")
	assert.False(t, cached)
	n, err := env.hub.DM.UnreadCount(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, ok, _ := env.cache.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestUnreadCount_ConcurrentSendsSettle(t *testing.T) {
	env := newTestEnv(true)
	env.connect("b1", "b")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.hub.DM.Send(ctx, "a", "b", "hi")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.hub.DM.UnreadCount(ctx, "b")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	env.hub.Close()

	n, err := env.hub.DM.UnreadCount(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	unread := env.out.named("b1", EventUnreadUpdate)
	require.NotEmpty(t, unread)
	assert.Equal(t, 20, unread[len(unread)-1].Data)
}
