package wsrelay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	liveproxy "github.com/go-mizu/liveproxy"
	"github.com/go-mizu/liveproxy/memstore"
)

func newTestProxy(t *testing.T) *liveproxy.Proxy {
	t.Helper()
	store := memstore.New()
	p, err := liveproxy.Create(context.Background(), store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"count": 0},
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Destroy(context.Background()) })
	return p
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestRejectsMissingToken(t *testing.T) {
	p := newTestProxy(t)
	relay := NewRelay(p, []byte("secret"), nil)
	ts := httptest.NewServer(relay)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, 401, resp.StatusCode)
	}
}

func TestRelaysMutationToClient(t *testing.T) {
	p := newTestProxy(t)
	relay := NewRelay(p, []byte("secret"), nil)
	ts := httptest.NewServer(relay)
	defer ts.Close()

	tok, err := relay.Token("tester", time.Minute)
	require.NoError(t, err)

	header := make(map[string][]string)
	header["Authorization"] = []string{"Bearer " + tok}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, p.Value().Set("count", 1))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "mutation", msg.Type)
}
