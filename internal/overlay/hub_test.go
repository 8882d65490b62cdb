package overlay

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/emoterain/internal/asset"
	"github.com/john/emoterain/internal/emote"
	"github.com/john/emoterain/internal/metrics"
)

// testHub serves hub on an httptest server and returns a dial function.
func testHub(t *testing.T, opts Options) (*Hub, func(query string) *ws.Conn) {
	t.Helper()

	hub := NewHub(opts, nil)
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	dial := func(query string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/overlay" + query
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return hub, dial
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, time.Second, time.Millisecond)
}

type frame struct {
	Channel string  `json:"channel"`
	X       float64 `json:"x"`
	Emotes  []struct {
		ID    string `json:"id"`
		Asset struct {
			URL string `json:"url"`
		} `json:"asset"`
	} `json:"emotes"`
}

func readFrame(t *testing.T, conn *ws.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func batchFor(channel string) emote.Batch {
	return emote.Batch{
		Platform: "twitch",
		Channel:  channel,
		X:        0.3,
		Emotes: []emote.Descriptor{{
			ID:    "25",
			Asset: &asset.Link{Href: "https://static-cdn.jtvnw.net/emoticons/v1/25/3.0"},
		}},
	}
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub, dial := testHub(t, Options{})
	conn := dial("")
	waitForClients(t, hub, 1)

	require.NoError(t, hub.Publish(batchFor("moonmoon")))

	f := readFrame(t, conn)
	assert.Equal(t, "moonmoon", f.Channel)
	assert.Equal(t, 0.3, f.X)
	require.Len(t, f.Emotes, 1)
	assert.Equal(t, "25", f.Emotes[0].ID)
	assert.Equal(t, "https://static-cdn.jtvnw.net/emoticons/v1/25/3.0", f.Emotes[0].Asset.URL)
}

func TestHub_ChannelFilter(t *testing.T) {
	hub, dial := testHub(t, Options{})
	filtered := dial("?channel=%23Forsen")
	all := dial("")
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Publish(batchFor("moonmoon")))
	require.NoError(t, hub.Publish(batchFor("forsen")))

	assert.Equal(t, "forsen", readFrame(t, filtered).Channel)
	assert.Equal(t, "moonmoon", readFrame(t, all).Channel)
	assert.Equal(t, "forsen", readFrame(t, all).Channel)
}

func TestHub_RateLimitDropsExcess(t *testing.T) {
	hub, dial := testHub(t, Options{MaxBatchesPerSecond: 0.001, Burst: 1})
	conn := dial("")
	waitForClients(t, hub, 1)
	before := testutil.ToFloat64(metrics.OverlayDropped.WithLabelValues("rate_limited"))

	require.NoError(t, hub.Publish(batchFor("first")))
	require.NoError(t, hub.Publish(batchFor("second")))

	assert.Equal(t, "first", readFrame(t, conn).Channel)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OverlayDropped.WithLabelValues("rate_limited")))
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, dial := testHub(t, Options{})
	conn := dial("")
	waitForClients(t, hub, 1)

	conn.Close()

	waitForClients(t, hub, 0)
	assert.NoError(t, hub.Publish(batchFor("moonmoon")))
}
