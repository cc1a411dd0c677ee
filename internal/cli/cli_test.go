package cli

import (
	"encoding/json"
	"testing"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	params, err := parseFields([]string{
		"collection=0xc000000000000000000000000000000000000001",
		"item_id=7",
		"approved=false",
		"amount=\"1000\"",
		"note=a=b",
	})
	require.NoError(t, err)

	assert.Equal(t, "0xc000000000000000000000000000000000000001", params["collection"])
	assert.Equal(t, json.Number("7"), params["item_id"])
	assert.Equal(t, false, params["approved"])
	assert.Equal(t, "1000", params["amount"])
	assert.Equal(t, "a=b", params["note"])

	_, err = parseFields([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseFields([]string{"=1"})
	assert.Error(t, err)
}

func TestParseValueKeepsStructuredTextAsString(t *testing.T) {
	assert.Equal(t, "[1,2]", parseValue("[1,2]"))
	assert.Equal(t, "1 2", parseValue("1 2"))
	assert.Equal(t, "", parseValue(""))
}

func TestBuildRequestSigns(t *testing.T) {
	kp, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	params := map[string]interface{}{"item_id": json.Number("7")}
	body, err := buildRequest("cancel_offer", params, kp.PrivateKeyHex())
	require.NoError(t, err)

	var req struct {
		Method string                   `json:"method"`
		Params []map[string]interface{} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "cancel_offer", req.Method)
	require.Len(t, req.Params, 1)
	assert.Equal(t, kp.PublicKeyHex(), req.Params[0]["signing_pub_key"])

	payload, err := rpc.SigningPayload("cancel_offer", params)
	require.NoError(t, err)
	signer, err := identity.Verify(payload, kp.PublicKeyHex(), req.Params[0]["signature"].(string))
	require.NoError(t, err)
	assert.Equal(t, kp.ID(), signer)

	_, err = buildRequest("cancel_offer", map[string]interface{}{}, "zz")
	assert.Error(t, err)
}
