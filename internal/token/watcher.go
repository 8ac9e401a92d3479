package token

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// pollInterval is a var, not a const, so tests can shrink it instead of
// waiting out real time.
var pollInterval = 5 * time.Second

// Watcher polls the shared token file on disk, decrypts it on every poll,
// and notifies callers of the plaintext access token whenever the decrypted
// plaintext differs from the last one emitted. A
// transition from "file absent" to "file present" is itself a change, since
// the token producer may not exist yet when the agent starts.
type Watcher struct {
	store *Store
	path  string
}

// NewWatcher creates a Watcher for the encrypted token file at path.
func NewWatcher(store *Store, path string) *Watcher {
	return &Watcher{store: store, path: path}
}

// Run polls every 5 seconds until ctx is canceled, invoking onChange with
// the decrypted token each time the decrypted plaintext differs from the
// last emitted plaintext (including the None->Some transition). The raw
// ciphertext is never compared directly: the nonce is random per write
// (spec.md §3), so rewriting the same plaintext still changes the bytes
// on disk. A decrypt failure is logged and leaves the last emitted
// plaintext untouched, so a transient failure does not permanently
// suppress a value that decrypts successfully on a later poll.
func (w *Watcher) Run(ctx context.Context, onChange func(token string)) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last *string

	check := func() {
		raw, err := os.ReadFile(w.path)
		if err != nil {
			if os.IsNotExist(err) {
				if last != nil {
					slog.Warn("shared token file disappeared", "path", w.path)
				}
				return
			}
			slog.Error("failed to read shared token file", "error", err)
			return
		}

		plaintext, err := w.store.Decrypt(string(raw))
		if err != nil {
			slog.Error("failed to decrypt shared token", "error", err)
			return
		}

		if last != nil && *last == plaintext {
			return
		}
		last = &plaintext
		onChange(plaintext)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
