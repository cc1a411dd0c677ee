package rpc

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, n *testNode) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(n.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The subscription exists once the upgrade has been handled
	require.Eventually(t, func() bool { return n.ws.Connections() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketStreamsRecords(t *testing.T) {
	n := newTestNode(t, true)
	conn := dialWS(t, n)

	n.listItem(t)
	requireSuccess(t, n.signed(t, n.buyer, "place_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "amount": "500",
	}))

	msg := readMessage(t, conn)
	assert.JSONEq(t, `"event"`, string(msg["type"]))

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	var rec event.Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, uint64(1), rec.Seq)
	assert.Equal(t, event.NameOfferPlaced, rec.Name)
	placed := rec.Event.(event.OfferPlaced)
	assert.Equal(t, n.buyer.ID(), placed.Offerer)
	assert.Equal(t, "42", placed.ItemID)
	assert.Equal(t, "500", placed.Amount.String())
}

func TestWebSocketCommands(t *testing.T) {
	n := newTestNode(t, true)
	conn := dialWS(t, n)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"command": "market_info", "id": 7}))
	msg := readMessage(t, conn)
	assert.JSONEq(t, `"response"`, string(msg["type"]))
	assert.JSONEq(t, `7`, string(msg["id"]))
	assert.JSONEq(t, `"success"`, string(msg["status"]))

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(msg["result"], &res))
	assert.Equal(t, engineID.String(), res["engine_identity"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"id": 8}))
	msg = readMessage(t, conn)
	assert.JSONEq(t, `"error"`, string(msg["status"]))
	assert.JSONEq(t, `"missingCommand"`, string(msg["error"]))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"command": "offer_info", "id": 9, "collection": collection.String(), "item_id": "1",
		"offerer": n.buyer.ID().String(),
	}))
	msg = readMessage(t, conn)
	assert.JSONEq(t, `"objectNotFound"`, string(msg["error"]))
}

func TestWebSocketCloseReleasesSubscriptions(t *testing.T) {
	n := newTestNode(t, true)
	conn := dialWS(t, n)
	assert.Equal(t, 1, n.bus.Subscribers())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return n.bus.Subscribers() == 0 && n.ws.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
