package realtime

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomMembership(t *testing.T) {
	h := NewHub()

	h.join("a", "drivers")
	h.join("b", "drivers")
	h.join("a", "booking:1")
	assert.Equal(t, []string{"a", "b"}, h.Members("drivers"))

	h.leave("b", "drivers")
	assert.Equal(t, []string{"a"}, h.Members("drivers"))

	h.drop("a")
	assert.Empty(t, h.Members("drivers"))
	assert.Empty(t, h.Members("booking:1"))
	assert.Empty(t, h.rooms, "empty rooms are removed")
}

func TestPublishWithoutClients(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() {
		h.Publish("vehicle_location", map[string]any{"vehicle_id": "v1"})
	})
}

// socketClient speaks the socket.io packet format over an engine.io polling connection.
type socketClient struct {
	conn engineio.Conn
	enc  *parser.Encoder
	dec  *parser.Decoder
}

type received struct {
	event   string
	payload map[string]any
	err     error
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub()
	go h.Serve()
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { h.Close() })
	return h, srv
}

func dial(t *testing.T, url string) *socketClient {
	t.Helper()
	d := engineio.Dialer{Transports: []transport.Transport{polling.Default}}
	conn, err := d.Dial(url+"/socket.io/", http.Header{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &socketClient{conn: conn, enc: parser.NewEncoder(conn), dec: parser.NewDecoder(conn)}
	var header parser.Header
	var event string
	require.NoError(t, c.dec.DecodeHeader(&header, &event))
	require.Equal(t, parser.Connect, header.Type)
	require.NoError(t, c.dec.DiscardLast())
	return c
}

func (c *socketClient) emit(t *testing.T, event string, payload any) {
	t.Helper()
	require.NoError(t, c.enc.Encode(parser.Header{Type: parser.Event}, []any{event, payload}))
}

// next waits for the next event packet from the server.
func (c *socketClient) next(t *testing.T) (string, map[string]any) {
	t.Helper()
	ch := make(chan received, 1)
	go func() {
		var header parser.Header
		var event string
		if err := c.dec.DecodeHeader(&header, &event); err != nil {
			ch <- received{err: err}
			return
		}
		args, err := c.dec.DecodeArgs([]reflect.Type{reflect.TypeOf(map[string]any{})})
		if err != nil {
			ch <- received{err: err}
			return
		}
		ch <- received{event: event, payload: args[0].Interface().(map[string]any)}
	}()

	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.event, r.payload
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return "", nil
	}
}

func TestClientRoomsOverSocket(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv.URL)

	c.emit(t, "join_room", roomRequest{Room: "booking:42"})
	assert.Eventually(t, func() bool { return len(h.Members("booking:42")) == 1 },
		2*time.Second, 10*time.Millisecond)

	c.emit(t, "join_room", roomRequest{})
	c.emit(t, "leave_room", roomRequest{Room: "booking:42"})
	assert.Eventually(t, func() bool { return len(h.Members("booking:42")) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestPublishReachesConnectedClients(t *testing.T) {
	h, srv := startHub(t)
	first := dial(t, srv.URL)
	second := dial(t, srv.URL)

	h.Publish("vehicle_location", map[string]any{"vehicle_id": "v1", "speed": 32.5})

	for _, c := range []*socketClient{first, second} {
		event, payload := c.next(t)
		assert.Equal(t, "vehicle_location", event)
		assert.Equal(t, "v1", payload["vehicle_id"])
		assert.Equal(t, 32.5, payload["speed"])
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv.URL)
	c.emit(t, "join_room", roomRequest{Room: "drivers"})
	require.Eventually(t, func() bool { return len(h.Members("drivers")) == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Close())
	assert.Eventually(t, func() bool { return len(h.Members("drivers")) == 0 },
		2*time.Second, 10*time.Millisecond)
}
