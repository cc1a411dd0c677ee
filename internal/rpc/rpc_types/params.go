package rpc_types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/holiman/uint256"
)

// ParseParams decodes the request parameters into v. Missing parameters
// leave v at its zero value.
func ParseParams(params json.RawMessage, v interface{}) *RpcError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return RpcErrorInvalidParams("Invalid parameters: " + err.Error())
	}
	return nil
}

// Numeric is a 256-bit quantity that can unmarshal from either a JSON
// number or a string, so item ids and amounts beyond 2^53 survive clients
// that quote them.
type Numeric string

// UnmarshalJSON implements custom unmarshaling for Numeric
func (n *Numeric) UnmarshalJSON(data []byte) error {
	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		*n = Numeric(strVal)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var numVal json.Number
	if err := dec.Decode(&numVal); err == nil {
		*n = Numeric(numVal.String())
		return nil
	}

	return fmt.Errorf("value must be a number or string, got: %s", string(data))
}

// String returns the string representation of the value
func (n Numeric) String() string {
	return string(n)
}

// RequireIdentity parses a mandatory identity field
func RequireIdentity(field, value string) (identity.ID, *RpcError) {
	if value == "" {
		return identity.Null, RpcErrorMissingField(field)
	}
	id, err := identity.Parse(value)
	if err != nil {
		return identity.Null, RpcErrorInvalidField(field)
	}
	return id, nil
}

// RequireItemID parses a mandatory item identifier field
func RequireItemID(field string, value Numeric) (uint256.Int, *RpcError) {
	if value == "" {
		return uint256.Int{}, RpcErrorMissingField(field)
	}
	id, err := ledger.ParseItemID(value.String())
	if err != nil {
		return uint256.Int{}, RpcErrorInvalidField(field)
	}
	return id, nil
}

// RequireAmount parses a mandatory amount of base units
func RequireAmount(field string, value Numeric) (amount.Amount, *RpcError) {
	if value == "" {
		return amount.Amount{}, RpcErrorMissingField(field)
	}
	a, err := amount.Parse(value.String())
	if err != nil {
		return amount.Amount{}, RpcErrorInvalidField(field)
	}
	return a, nil
}

// AssetParams names one item of a collection
type AssetParams struct {
	Collection string  `json:"collection"`
	ItemID     Numeric `json:"item_id"`
}

// Parse validates both fields
func (p AssetParams) Parse() (identity.ID, uint256.Int, *RpcError) {
	collection, rpcErr := RequireIdentity("collection", p.Collection)
	if rpcErr != nil {
		return identity.Null, uint256.Int{}, rpcErr
	}
	itemID, rpcErr := RequireItemID("item_id", p.ItemID)
	if rpcErr != nil {
		return identity.Null, uint256.Int{}, rpcErr
	}
	return collection, itemID, nil
}
