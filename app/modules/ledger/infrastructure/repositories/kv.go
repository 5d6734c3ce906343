package ledgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	kvEntryPrefix = "entry."
	kvControlKey  = "control.paused"
)

// KVStore keeps entries in a JetStream key-value bucket. Updates are revision-checked
// writes, so the stored best score can only be replaced by a writer that read it.
type KVStore struct {
	kv jetstream.KeyValue
}

var _ Store = (*KVStore)(nil)

// NewKVStore opens, creating when needed, the named bucket.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "score ledger entries",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value bucket %q: %w", bucket, err)
	}
	return &KVStore{kv: kv}, nil
}

// NewKVStoreFromBucket wraps an already opened bucket.
func NewKVStoreFromBucket(kv jetstream.KeyValue) *KVStore {
	return &KVStore{kv: kv}
}

// entryKey hex-encodes the id; participant ids may contain characters that are not
// valid in KV keys.
func entryKey(id ledgerdomain.ParticipantID) string {
	return kvEntryPrefix + fmt.Sprintf("%x", string(id))
}

func (s *KVStore) get(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, uint64, error) {
	item, err := s.kv.Get(ctx, entryKey(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return ledgerdomain.ScoreEntry{}, 0, ErrNotFound
		}
		return ledgerdomain.ScoreEntry{}, 0, fmt.Errorf("failed to get score entry: %w", err)
	}
	var e ledgerdomain.ScoreEntry
	if err := json.Unmarshal(item.Value(), &e); err != nil {
		return ledgerdomain.ScoreEntry{}, 0, fmt.Errorf("failed to decode score entry: %w", err)
	}
	return e, item.Revision(), nil
}

func (s *KVStore) Get(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error) {
	e, _, err := s.get(ctx, id)
	return e, err
}

func (s *KVStore) Insert(ctx context.Context, entry ledgerdomain.ScoreEntry) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode score entry: %w", err)
	}
	if _, err := s.kv.Create(ctx, entryKey(entry.ParticipantID), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create score entry: %w", err)
	}
	return nil
}

func (s *KVStore) CompareAndSwap(ctx context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	current, revision, err := s.get(ctx, entry.ParticipantID)
	if err != nil {
		return err
	}
	if current.BestScore != expectedBest {
		return ErrConflict
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode score entry: %w", err)
	}
	if _, err := s.kv.Update(ctx, entryKey(entry.ParticipantID), data, revision); err != nil {
		if isWrongRevision(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to update score entry: %w", err)
	}
	return nil
}

func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (s *KVStore) Delete(ctx context.Context, id ledgerdomain.ParticipantID) error {
	if _, _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, entryKey(id)); err != nil {
		return fmt.Errorf("failed to delete score entry: %w", err)
	}
	return nil
}

func (s *KVStore) keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, kvEntryPrefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *KVStore) ScanSorted(ctx context.Context) ([]ledgerdomain.ScoreEntry, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ledgerdomain.ScoreEntry, 0, len(keys))
	for _, k := range keys {
		item, err := s.kv.Get(ctx, k)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", k, err)
		}
		var e ledgerdomain.ScoreEntry
		if err := json.Unmarshal(item.Value(), &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", k, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return ledgerdomain.Ranks(out[i], out[j]) })
	return out, nil
}

func (s *KVStore) Count(ctx context.Context) (uint64, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(keys)), nil
}

func (s *KVStore) Paused(ctx context.Context) (bool, error) {
	item, err := s.kv.Get(ctx, kvControlKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read pause state: %w", err)
	}
	return string(item.Value()) == "true", nil
}

func (s *KVStore) SetPaused(ctx context.Context, paused bool) error {
	v := "false"
	if paused {
		v = "true"
	}
	if _, err := s.kv.PutString(ctx, kvControlKey, v); err != nil {
		return fmt.Errorf("failed to write pause state: %w", err)
	}
	return nil
}

// Close is a no-op; the NATS connection belongs to the caller.
func (s *KVStore) Close() error { return nil }
