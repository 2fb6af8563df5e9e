package ws

import (
	"testing"

	"github.com/esc4n0rx/streamhive/types"
	"github.com/stretchr/testify/require"
)

func testClient(id, name string) *Client {
	return newClient(nil, &types.User{Id: id, Name: name})
}

func TestBroadcastExcludesActor(t *testing.T) {
	hub := newHub("r1")
	a := testClient("a", "A")
	b := testClient("b", "B")
	c := testClient("c", "C")
	hub.add(a)
	hub.add(b)
	hub.add(c)

	hub.BroadcastEvent("new_message", types.SuccessResponse(map[string]interface{}{"message": "hi"}), a)

	require.Empty(t, a.Send)
	require.Len(t, b.Send, 1)
	require.Len(t, c.Send, 1)

	msg := <-b.Send
	require.Equal(t, "new_message", msg.Event)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newHub("r1")
	slow := testClient("slow", "Slow")
	hub.add(slow)

	for i := 0; i < sendBufferSize+10; i++ {
		hub.BroadcastEvent("new_message", types.SuccessResponse(nil), nil)
	}
	// overflow frames are dropped, the hub never blocks
	require.Len(t, slow.Send, sendBufferSize)
}

func TestOnlineUsersDeduplicates(t *testing.T) {
	hub := newHub("r1")
	hub.add(testClient("a", "A"))
	hub.add(testClient("a", "A")) // second device, same user
	hub.add(testClient("b", "B"))

	require.Len(t, hub.OnlineUsers(), 2)
}

func TestRegistryReleaseDropsEmptyHub(t *testing.T) {
	reg := NewRegistry()
	a := testClient("a", "A")
	b := testClient("b", "B")

	hub := reg.GetOrCreate("r1")
	hub.add(a)
	hub.add(b)
	require.Same(t, hub, reg.GetOrCreate("r1"))

	reg.Release("r1", a)
	require.NotNil(t, reg.Get("r1"))

	reg.Release("r1", b)
	require.Nil(t, reg.Get("r1"))
}
