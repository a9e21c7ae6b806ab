package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/skimmer/internal/archive"
)

// Persisted keys.
const (
	KeyMessages = "extractedMessages"
	KeyThreads  = "extractedThreads"
	KeyState    = "extractorState"
)

// ExtractorState is the session metadata saved next to the archive.
type ExtractorState struct {
	ChannelID    string             `json:"channelId"`
	ChannelName  string             `json:"channelName"`
	LastSaveTime time.Time          `json:"lastSaveTime"`
	TimeRange    *archive.TimeRange `json:"timeRange"`
}

// Snapshot is everything stored under the three keys. Threads is nil when
// no thread index was ever saved.
type Snapshot struct {
	Messages []archive.Message
	Threads  []archive.SerializedThread
	State    ExtractorState
}

// Capture builds a snapshot of store stamped with now.
func Capture(store *archive.Store, state ExtractorState, now time.Time) Snapshot {
	state.LastSaveTime = now
	return Snapshot{
		Messages: store.Snapshot(),
		Threads:  store.Threads().Serialize(),
		State:    state,
	}
}

// Save writes all three keys. Every key is attempted even when an earlier
// one fails.
func Save(ctx context.Context, kv KV, snap Snapshot) error {
	messages := snap.Messages
	if messages == nil {
		messages = []archive.Message{}
	}
	threads := snap.Threads
	if threads == nil {
		threads = []archive.SerializedThread{}
	}

	var errs []error
	for _, item := range []struct {
		key string
		v   any
	}{
		{KeyMessages, messages},
		{KeyThreads, threads},
		{KeyState, snap.State},
	} {
		data, err := json.Marshal(item.v)
		if err != nil {
			errs = append(errs, fmt.Errorf("persist: encode %s: %w", item.key, err))
			continue
		}
		if err := kv.Set(ctx, item.key, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load reads the three keys. Missing keys leave their part empty.
func Load(ctx context.Context, kv KV) (Snapshot, error) {
	var snap Snapshot
	if _, err := get(ctx, kv, KeyMessages, &snap.Messages); err != nil {
		return Snapshot{}, err
	}
	found, err := get(ctx, kv, KeyThreads, &snap.Threads)
	if err != nil {
		return Snapshot{}, err
	}
	if found && snap.Threads == nil {
		snap.Threads = []archive.SerializedThread{}
	}
	if _, err := get(ctx, kv, KeyState, &snap.State); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func get(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("persist: decode %s: %w", key, err)
	}
	return true, nil
}

// Restore loads the persisted archive into store and returns the saved
// session metadata.
func Restore(ctx context.Context, kv KV, store *archive.Store, loc *time.Location) (ExtractorState, error) {
	snap, err := Load(ctx, kv)
	if err != nil {
		return ExtractorState{}, err
	}
	threads := snap.Threads
	if len(threads) == 0 {
		// An empty saved index is treated as stale and rebuilt.
		threads = nil
	}
	store.Load(snap.Messages, threads, loc)
	return snap.State, nil
}

// Clear removes all three keys.
func Clear(ctx context.Context, kv KV) error {
	return kv.Delete(ctx, KeyMessages, KeyThreads, KeyState)
}
