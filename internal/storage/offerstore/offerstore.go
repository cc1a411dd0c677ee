// Package offerstore mirrors the committed offer ledger into a key/value
// database so a restarted server resumes with the same offers and settings.
// Collaborators attached as participants have their state written in the
// same batches, so funds held for offers and item ownership come back with
// the offers they belong to.
//
// Layout:
//
//	"o" || collection || item id (32 bytes) || offerer  -> msgpack offerRecord
//	"s"                                                 -> msgpack settingsRecord
//	participant prefix || participant key               -> participant record
package offerstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeJamon/goOfferd/internal/core/amount"
	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/LeJamon/goOfferd/internal/core/ledger"
	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/ugorji/go/codec"
	"go.uber.org/zap"
)

const (
	prefixOffer = 'o'
	keySettings = "s"

	// DefaultTimeout bounds a single Persist call
	DefaultTimeout = 5 * time.Second
)

var (
	ErrCorruptRecord  = errors.New("corrupt offer store record")
	ErrReservedPrefix = errors.New("participant prefix is reserved")
	ErrPrefixAttached = errors.New("participant prefix already attached")
)

// Participant is a collaborator whose state is stored with the offers.
// Pending returns the records changed since they were last flushed, a nil
// value meaning the record is gone; flushed is called once they are written.
type Participant interface {
	Pending() (records map[string][]byte, flushed func())
	Load(records map[string][]byte) error
}

type participant struct {
	name   string
	prefix byte
	Participant
}

type offerRecord struct {
	Amount []byte `codec:"a"`
}

type settingsRecord struct {
	FeeBasisPoints uint32 `codec:"f"`
	FeeRecipient   []byte `codec:"r"`
	Owner          []byte `codec:"o"`
}

// Store persists ledger changes on a database.DB
type Store struct {
	db      database.DB
	handle  *codec.MsgpackHandle
	timeout time.Duration
	logger  *zap.Logger

	// writeMu orders batches so a participant record is never overwritten
	// by an older value
	writeMu      sync.Mutex
	participants []participant
}

// New creates a store over db
func New(db database.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:      db,
		handle:  &codec.MsgpackHandle{},
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// Attach stores the state of p under prefix. It must be called before
// Restore and before the store receives changes.
func (s *Store) Attach(name string, prefix byte, p Participant) error {
	if prefix == prefixOffer || prefix == keySettings[0] {
		return fmt.Errorf("%w: %q for %s", ErrReservedPrefix, prefix, name)
	}
	for _, other := range s.participants {
		if other.prefix == prefix {
			return fmt.Errorf("%w: %q for %s, held by %s", ErrPrefixAttached, prefix, name, other.name)
		}
	}
	s.participants = append(s.participants, participant{name: name, prefix: prefix, Participant: p})
	return nil
}

func offerKey(k ledger.OfferKey) []byte {
	return append([]byte{prefixOffer}, k.Bytes()...)
}

func (s *Store) encode(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, s.handle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) decode(data []byte, v any) error {
	if err := codec.NewDecoderBytes(data, s.handle).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}

func (s *Store) settingsOp(settings ledger.Settings) (database.BatchOperation, error) {
	raw, err := s.encode(settingsRecord{
		FeeBasisPoints: settings.FeeBasisPoints,
		FeeRecipient:   settings.FeeRecipient[:],
		Owner:          settings.Owner[:],
	})
	if err != nil {
		return database.BatchOperation{}, err
	}
	return database.Put([]byte(keySettings), raw), nil
}

func (s *Store) offerOp(o ledger.Offer) (database.BatchOperation, error) {
	b := o.Amount.Bytes32()
	raw, err := s.encode(offerRecord{Amount: b[:]})
	if err != nil {
		return database.BatchOperation{}, err
	}
	return database.Put(offerKey(o.Key()), raw), nil
}

// Persist writes the committed changes of one operation in a single batch,
// together with the pending records of every participant
func (s *Store) Persist(changes ledger.Changes) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ops := make([]database.BatchOperation, 0, len(changes.Offers)+1)
	for _, c := range changes.Offers {
		switch c.Action {
		case ledger.ActionInsert, ledger.ActionModify:
			op, err := s.offerOp(c.After)
			if err != nil {
				return fmt.Errorf("encode offer: %w", err)
			}
			ops = append(ops, op)
		case ledger.ActionErase:
			ops = append(ops, database.Del(offerKey(c.Key)))
		}
	}
	if changes.Settings != nil {
		op, err := s.settingsOp(*changes.Settings)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		ops = append(ops, op)
	}
	return s.write(ctx, ops)
}

// Sync writes the pending records of every participant. It is used for
// changes made to them outside a market operation.
func (s *Store) Sync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.write(ctx, nil)
}

func (s *Store) write(ctx context.Context, ops []database.BatchOperation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var flushed []func()
	for _, p := range s.participants {
		records, done := p.Pending()
		for key, value := range records {
			k := append([]byte{p.prefix}, key...)
			if value == nil {
				ops = append(ops, database.Del(k))
			} else {
				ops = append(ops, database.Put(k, value))
			}
		}
		if len(records) > 0 {
			flushed = append(flushed, done)
		}
	}
	if len(ops) == 0 {
		return nil
	}

	if err := s.db.Batch(ctx, ops); err != nil {
		return fmt.Errorf("persist %d records: %w", len(ops), err)
	}
	for _, done := range flushed {
		done()
	}
	s.logger.Debug("persisted changes", zap.Int("records", len(ops)))
	return nil
}

// SaveSettings stores the settings of a ledger that has none persisted yet
func (s *Store) SaveSettings(ctx context.Context, settings ledger.Settings) error {
	op, err := s.settingsOp(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.db.Write(ctx, op.Key, op.Value)
}

// Load reads the persisted state. found is false when nothing was stored yet.
func (s *Store) Load(ctx context.Context) (settings ledger.Settings, offers []ledger.Offer, found bool, err error) {
	raw, err := s.db.Read(ctx, []byte(keySettings))
	if errors.Is(err, database.ErrKeyNotFound) {
		return settings, nil, false, nil
	}
	if err != nil {
		return settings, nil, false, fmt.Errorf("read settings: %w", err)
	}

	var rec settingsRecord
	if err := s.decode(raw, &rec); err != nil {
		return settings, nil, false, err
	}
	settings.FeeBasisPoints = rec.FeeBasisPoints
	if settings.FeeRecipient, err = identity.FromBytes(rec.FeeRecipient); err != nil {
		return settings, nil, false, fmt.Errorf("%w: fee recipient: %v", ErrCorruptRecord, err)
	}
	if settings.Owner, err = identity.FromBytes(rec.Owner); err != nil {
		return settings, nil, false, fmt.Errorf("%w: owner: %v", ErrCorruptRecord, err)
	}

	prefix := []byte{prefixOffer}
	it, err := s.db.Iterator(ctx, prefix, database.PrefixEnd(prefix))
	if err != nil {
		return settings, nil, false, fmt.Errorf("iterate offers: %w", err)
	}
	defer it.Close()

	for it.Next() {
		key, ok := ledger.OfferKeyFromBytes(it.Key()[1:])
		if !ok {
			return settings, nil, false, fmt.Errorf("%w: key %x", ErrCorruptRecord, it.Key())
		}
		var rec offerRecord
		if err := s.decode(it.Value(), &rec); err != nil {
			return settings, nil, false, err
		}
		amt, err := amount.FromBytes(rec.Amount)
		if err != nil || amt.IsZero() {
			return settings, nil, false, fmt.Errorf("%w: amount of %x", ErrCorruptRecord, it.Key())
		}
		offers = append(offers, ledger.Offer{
			Collection: key.Collection,
			ItemID:     key.ItemID,
			Offerer:    key.Offerer,
			Amount:     amt,
		})
	}
	if err := it.Error(); err != nil {
		return settings, nil, false, fmt.Errorf("iterate offers: %w", err)
	}
	return settings, offers, true, nil
}

// Restore loads the persisted state into l. If nothing was persisted the
// ledger's current settings are stored instead and restored is false.
func (s *Store) Restore(ctx context.Context, l *ledger.Ledger) (restored bool, err error) {
	settings, offers, found, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range s.participants {
		if err := s.restoreParticipant(ctx, p); err != nil {
			return false, err
		}
	}
	if !found {
		return false, s.SaveSettings(ctx, l.ReadSettings())
	}
	l.Load(settings, offers)
	s.logger.Info("restored offer ledger",
		zap.Int("offers", len(offers)),
		zap.Uint32("fee_basis_points", settings.FeeBasisPoints))
	return true, nil
}

func (s *Store) restoreParticipant(ctx context.Context, p participant) error {
	prefix := []byte{p.prefix}
	it, err := s.db.Iterator(ctx, prefix, database.PrefixEnd(prefix))
	if err != nil {
		return fmt.Errorf("iterate %s: %w", p.name, err)
	}
	defer it.Close()

	records := make(map[string][]byte)
	for it.Next() {
		records[string(it.Key()[1:])] = append([]byte(nil), it.Value()...)
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate %s: %w", p.name, err)
	}
	if err := p.Load(records); err != nil {
		return fmt.Errorf("restore %s: %w", p.name, err)
	}
	s.logger.Info("restored participant", zap.String("name", p.name), zap.Int("records", len(records)))
	return nil
}
