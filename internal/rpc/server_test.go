package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/event"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/core/market"
	"github.com/LeJamon/goOfferd/internal/core/result"
	"github.com/LeJamon/goOfferd/internal/registry/memory"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	engineID   = identity.MustParse("0xe000000000000000000000000000000000000001")
	feeSink    = identity.MustParse("0xfee0000000000000000000000000000000000001")
	collection = identity.MustParse("0xc000000000000000000000000000000000000001")
)

const oneUnit = "1000000000000000000"

type testNode struct {
	url      string
	http     *httptest.Server
	ws       *WebSocketServer
	bus      *event.Bus
	engine   *market.Engine
	registry *memory.Registry
	bank     *memory.Bank

	// syncs counts stored development changes; syncErr fails them
	syncs   atomic.Int32
	syncErr atomic.Value

	owner, seller, buyer *identity.KeyPair
}

func newKey(t *testing.T) *identity.KeyPair {
	t.Helper()
	key, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	return key
}

func newTestNode(t *testing.T, requireSignatures bool) *testNode {
	t.Helper()
	n := &testNode{
		bus:      event.NewBus(),
		registry: memory.NewRegistry(),
		bank:     memory.NewBank(engineID),
		owner:    newKey(t),
		seller:   newKey(t),
		buyer:    newKey(t),
	}

	l := ledger.New(ledger.Settings{FeeBasisPoints: 250, FeeRecipient: feeSink, Owner: n.owner.ID()})
	engine, err := market.New(l, n.registry, n.bank, market.Options{Self: engineID, Bus: n.bus})
	require.NoError(t, err)
	n.engine = engine

	services := &rpc_types.ServiceContainer{
		Market:      engine,
		Registry:    n.registry,
		Bank:        n.bank,
		SyncDev:     n.syncDev,
		Decimals:    amount.DefaultDecimals,
		Version:     "test",
		StartTime:   time.Now(),
		Subscribers: n.bus.Subscribers,
	}
	server := NewServer(services, Options{
		Timeout:           5 * time.Second,
		RequireSignatures: requireSignatures,
		DevMethods:        true,
	})
	n.ws = NewWebSocketServer(server, n.bus, 16, nil)
	n.http = httptest.NewServer(NewHandler(server, n.ws))
	n.url = n.http.URL
	t.Cleanup(func() {
		_ = n.ws.Close()
		n.http.Close()
	})
	return n
}

func (n *testNode) syncDev(context.Context) error {
	if err, _ := n.syncErr.Load().(error); err != nil {
		return err
	}
	n.syncs.Add(1)
	return nil
}

func (n *testNode) call(t *testing.T, method string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	request := map[string]interface{}{"method": method}
	if params != nil {
		request["params"] = []interface{}{params}
	}
	body, err := json.Marshal(request)
	require.NoError(t, err)

	resp, err := http.Post(n.url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Result)
	return out.Result
}

func (n *testNode) signed(t *testing.T, key *identity.KeyPair, method string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	require.NoError(t, Sign(key, method, params))
	return n.call(t, method, params)
}

func requireSuccess(t *testing.T, res map[string]interface{}) {
	t.Helper()
	require.Equal(t, "success", res["status"], "unexpected error: %v", res)
}

func requireError(t *testing.T, res map[string]interface{}, token string) {
	t.Helper()
	require.Equal(t, "error", res["status"])
	assert.Equal(t, token, res["error"], "error_message: %v", res["error_message"])
}

// listItem mints item 42 to the seller, approves the engine and funds the buyer
func (n *testNode) listItem(t *testing.T) {
	t.Helper()
	requireSuccess(t, n.call(t, "dev_mint", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "owner": n.seller.ID().String(),
	}))
	requireSuccess(t, n.signed(t, n.seller, "dev_approve_all", map[string]interface{}{
		"operator": engineID.String(),
	}))
	requireSuccess(t, n.call(t, "dev_fund", map[string]interface{}{
		"account": n.buyer.ID().String(), "amount": oneUnit,
	}))
}

func TestSettlementOverRPC(t *testing.T) {
	n := newTestNode(t, true)
	n.listItem(t)

	res := n.signed(t, n.buyer, "place_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "amount": oneUnit,
	})
	requireSuccess(t, res)
	assert.Equal(t, "tesSUCCESS", res["engine_result"])

	res = n.call(t, "offer_info", map[string]interface{}{
		"collection": collection.String(), "item_id": 42, "offerer": n.buyer.ID().String(),
	})
	requireSuccess(t, res)
	offer := res["offer"].(map[string]interface{})
	assert.Equal(t, n.buyer.ID().String(), offer["offerer"])
	assert.Equal(t, "42", offer["item_id"])
	assert.Equal(t, map[string]interface{}{"value": oneUnit, "display": "1"}, offer["amount"])

	res = n.call(t, "item_offers", map[string]interface{}{"collection": collection.String(), "item_id": "42"})
	requireSuccess(t, res)
	assert.Len(t, res["offers"], 1)

	res = n.signed(t, n.seller, "accept_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "offerer": n.buyer.ID().String(),
	})
	requireSuccess(t, res)

	res = n.call(t, "dev_balance", map[string]interface{}{"account": n.seller.ID().String()})
	requireSuccess(t, res)
	assert.Equal(t, "0.975", res["balance"].(map[string]interface{})["display"])

	res = n.call(t, "dev_balance", map[string]interface{}{"account": feeSink.String()})
	assert.Equal(t, "0.025", res["balance"].(map[string]interface{})["display"])

	res = n.call(t, "market_info", nil)
	requireSuccess(t, res)
	assert.Equal(t, float64(0), res["offer_count"])
	assert.Equal(t, engineID.String(), res["engine_identity"])
	settings := res["settings"].(map[string]interface{})
	assert.Equal(t, float64(250), settings["fee_basis_points"])
	assert.Equal(t, n.owner.ID().String(), settings["owner"])

	res = n.call(t, "offer_info", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "offerer": n.buyer.ID().String(),
	})
	requireError(t, res, "objectNotFound")
}

func TestMarketRejectionsCarryResultCodes(t *testing.T) {
	n := newTestNode(t, true)
	n.listItem(t)

	place := func() map[string]interface{} {
		return n.signed(t, n.buyer, "place_offer", map[string]interface{}{
			"collection": collection.String(), "item_id": "42", "amount": "1",
		})
	}
	requireSuccess(t, place())

	res := place()
	requireError(t, res, "tecDUPLICATE")
	assert.Equal(t, float64(result.TecDUPLICATE), res["error_code"])
	assert.Equal(t, result.TecDUPLICATE.Message(), res["error_message"])

	res = n.signed(t, n.seller, "cancel_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42",
	})
	requireError(t, res, "tecNO_ENTRY")

	res = n.signed(t, n.buyer, "accept_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "offerer": n.buyer.ID().String(),
	})
	requireError(t, res, "tecNOT_ASSET_OWNER")

	res = n.signed(t, n.seller, "set_fee", map[string]interface{}{"fee_basis_points": 100})
	requireError(t, res, "tefNO_PERMISSION")

	res = n.signed(t, n.owner, "set_fee", map[string]interface{}{"fee_basis_points": 1001})
	requireError(t, res, "temBAD_FEE")
}

func TestAdminMethods(t *testing.T) {
	n := newTestNode(t, true)
	newOwner := newKey(t)

	requireSuccess(t, n.signed(t, n.owner, "set_fee", map[string]interface{}{"fee_basis_points": 100}))
	requireSuccess(t, n.signed(t, n.owner, "set_fee_recipient", map[string]interface{}{
		"fee_recipient": n.seller.ID().String(),
	}))
	requireError(t, n.signed(t, n.owner, "set_fee_recipient", map[string]interface{}{
		"fee_recipient": identity.Null.String(),
	}), "temBAD_RECIPIENT")
	requireSuccess(t, n.signed(t, n.owner, "transfer_ownership", map[string]interface{}{
		"new_owner": newOwner.ID().String(),
	}))
	requireError(t, n.signed(t, n.owner, "set_fee", map[string]interface{}{"fee_basis_points": 5}), "tefNO_PERMISSION")

	settings := n.call(t, "market_info", nil)["settings"].(map[string]interface{})
	assert.Equal(t, float64(100), settings["fee_basis_points"])
	assert.Equal(t, n.seller.ID().String(), settings["fee_recipient"])
	assert.Equal(t, newOwner.ID().String(), settings["owner"])
}

func TestSignatureChecks(t *testing.T) {
	n := newTestNode(t, true)
	params := func() map[string]interface{} {
		return map[string]interface{}{"collection": collection.String(), "item_id": "1", "amount": "5"}
	}

	// Unsigned, with a caller claim
	p := params()
	p["caller"] = n.buyer.ID().String()
	res := n.call(t, "place_offer", p)
	requireError(t, res, "invalidParams")
	assert.Contains(t, res["error_message"], "signature")

	// Tampered after signing
	p = params()
	require.NoError(t, Sign(n.buyer, "place_offer", p))
	p["amount"] = "6"
	requireError(t, n.call(t, "place_offer", p), "badSignature")

	// Signed for a different method
	p = params()
	require.NoError(t, Sign(n.buyer, "cancel_offer", p))
	requireError(t, n.call(t, "place_offer", p), "badSignature")

	// Garbage key
	p = params()
	p["signing_pub_key"] = "zz"
	p["signature"] = "00"
	requireError(t, n.call(t, "place_offer", p), "publicMalformed")

	// The rejected request is echoed without its signature
	p = params()
	require.NoError(t, Sign(n.buyer, "place_offer", p))
	p["amount"] = "7"
	res = n.call(t, "place_offer", p)
	request := res["request"].(map[string]interface{})
	assert.Equal(t, "place_offer", request["command"])
	assert.NotContains(t, request, "signature")
}

func TestTrustedCallerWithoutSignatures(t *testing.T) {
	n := newTestNode(t, false)
	n.listItem(t)

	requireSuccess(t, n.call(t, "place_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42", "amount": "10",
		"caller": n.buyer.ID().String(),
	}))
	requireError(t, n.call(t, "cancel_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42",
	}), "invalidParams")

	// Signed requests are still verified
	requireSuccess(t, n.signed(t, n.buyer, "cancel_offer", map[string]interface{}{
		"collection": collection.String(), "item_id": "42",
	}))
	assert.Equal(t, oneUnit, n.bank.BalanceOf(n.buyer.ID()).String())
}

func TestRequestErrors(t *testing.T) {
	n := newTestNode(t, true)

	requireError(t, n.call(t, "no_such_method", nil), "unknownCmd")

	res := n.call(t, "offer_info", map[string]interface{}{"item_id": "1"})
	requireError(t, res, "invalidParams")
	assert.Equal(t, "Missing field 'collection'.", res["error_message"])

	resp, err := http.Post(n.url, "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	requireError(t, out.Result, "jsonInvalid")

	requireError(t, n.call(t, "recent_events", nil), "notEnabled")
}

func TestGetAndHealthEndpoints(t *testing.T) {
	n := newTestNode(t, true)

	resp, err := http.Get(n.url + "/?command=server_info")
	require.NoError(t, err)
	var out struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	requireSuccess(t, out.Result)
	info := out.Result["info"].(map[string]interface{})
	assert.Equal(t, "test", info["build_version"])
	assert.Equal(t, true, info["dev_methods"])

	resp, err = http.Get(n.url + "/health")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(n.url + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDevMethodsStoreTheirChanges(t *testing.T) {
	n := newTestNode(t, true)
	n.listItem(t)
	assert.Equal(t, int32(3), n.syncs.Load())

	requireSuccess(t, n.call(t, "dev_balance", map[string]interface{}{"account": n.buyer.ID().String()}))
	assert.Equal(t, int32(3), n.syncs.Load(), "reads store nothing")

	n.syncErr.Store(errors.New("disk full"))
	requireError(t, n.call(t, "dev_fund", map[string]interface{}{
		"account": n.buyer.ID().String(), "amount": oneUnit,
	}), "internal")
}

func TestDevMethodsAreOptIn(t *testing.T) {
	server := NewServer(&rpc_types.ServiceContainer{}, Options{})
	assert.NotContains(t, server.Methods(), "dev_mint")
	assert.Contains(t, server.Methods(), "place_offer")
}

func TestSigningPayloadIsCanonical(t *testing.T) {
	a, err := SigningPayload("set_fee", map[string]interface{}{"b": 1, "a": "x", "signature": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "set_fee\n{\"a\":\"x\",\"b\":1}", string(a))

	// Numbers decoded from the wire re-encode as sent
	fields, err := decodeFields(json.RawMessage(`{"b": 1, "a": "x"}`))
	require.NoError(t, err)
	b, err := SigningPayload("set_fee", fields)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
