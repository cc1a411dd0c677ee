package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/rpc/rpc_types"
)

const (
	fieldSigningPubKey = "signing_pub_key"
	fieldSignature     = "signature"
	fieldCaller        = "caller"
)

// SigningPayload returns the bytes a caller signs to invoke method with
// params: the method name, a newline, and the params object without its
// signature encoded with sorted keys.
func SigningPayload(method string, params map[string]interface{}) ([]byte, error) {
	unsigned := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != fieldSignature {
			unsigned[k] = v
		}
	}
	body, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return append([]byte(method+"\n"), body...), nil
}

// Sign adds signing_pub_key and signature for key to params
func Sign(key *identity.KeyPair, method string, params map[string]interface{}) error {
	params[fieldSigningPubKey] = key.PublicKeyHex()
	payload, err := SigningPayload(method, params)
	if err != nil {
		return err
	}
	params[fieldSignature] = key.SignHex(payload)
	return nil
}

// decodeFields decodes params keeping numbers in their original textual
// form, so that re-encoding reproduces what the client signed.
func decodeFields(params json.RawMessage) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if len(params) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// authenticate resolves the caller of a signer method. A signed request is
// always verified; an unsigned one is accepted only when signatures are not
// required, in which case the caller param is trusted.
func (s *Server) authenticate(method string, params json.RawMessage) (identity.ID, *rpc_types.RpcError) {
	fields, err := decodeFields(params)
	if err != nil {
		return identity.Null, rpc_types.RpcErrorInvalidParams("Invalid parameters: " + err.Error())
	}

	pub, _ := fields[fieldSigningPubKey].(string)
	sig, _ := fields[fieldSignature].(string)
	if pub != "" || sig != "" {
		if pub == "" {
			return identity.Null, rpc_types.RpcErrorMissingField(fieldSigningPubKey)
		}
		if sig == "" {
			return identity.Null, rpc_types.RpcErrorMissingField(fieldSignature)
		}
		payload, err := SigningPayload(method, fields)
		if err != nil {
			return identity.Null, rpc_types.RpcErrorInternal(err.Error())
		}
		caller, err := identity.Verify(payload, pub, sig)
		if errors.Is(err, identity.ErrInvalidPublicKey) {
			return identity.Null, rpc_types.RpcErrorPublicMalformed("Public key is malformed.")
		}
		if err != nil {
			return identity.Null, rpc_types.RpcErrorBadSignature("Signature verification failed.")
		}
		return caller, nil
	}

	if s.requireSignatures {
		return identity.Null, rpc_types.RpcErrorMissingField(fieldSignature)
	}
	caller, _ := fields[fieldCaller].(string)
	return rpc_types.RequireIdentity(fieldCaller, caller)
}
