package market

import (
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

func zapID(key string, id identity.ID) zap.Field {
	return zap.String(key, id.String())
}

func zapAsset(collection identity.ID, itemID *uint256.Int) zap.Field {
	return zap.String("asset", collection.String()+"/"+ledger.FormatItemID(itemID))
}

func zapErr(err error) zap.Field {
	return zap.Error(err)
}
