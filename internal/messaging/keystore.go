package messaging

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Keystore holds messaging-network private key material, one file per
// wallet address under a single directory.
type Keystore struct {
	dir    string
	logger *log.Logger
}

// NewKeystore returns a keystore rooted at dir.
func NewKeystore(dir string, logger *log.Logger) *Keystore {
	return &Keystore{dir: dir, logger: logger}
}

func (k *Keystore) keyPath(address string) string {
	return filepath.Join(k.dir, strings.ToLower(address)+".key")
}

// LoadKey reads the key material for address. Returns
// ErrNoKeyMaterial when none is stored.
func (k *Keystore) LoadKey(address string) ([]byte, error) {
	data, err := os.ReadFile(k.keyPath(address))
	if os.IsNotExist(err) {
		return nil, ErrNoKeyMaterial
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// StoreKey writes key material for address, creating the directory if
// needed.
func (k *Keystore) StoreKey(address string, material []byte) error {
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(k.keyPath(address), material, 0o600)
}

// Watch invokes onChange with the wallet address whenever key material
// is written or removed, until ctx is cancelled.
func (k *Keystore) Watch(ctx context.Context, onChange func(address string)) error {
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(k.dir); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, ".key") {
					continue
				}
				onChange(strings.TrimSuffix(name, ".key"))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				k.logger.Printf("keystore: watch error: %v", err)
			}
		}
	}()
	return nil
}
