// Package daemon wires the scheduler, pollers, trackers, and command
// API into the focalized background process.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/FocalizeApp/focalize-daemon/internal/config"
	"github.com/FocalizeApp/focalize-daemon/internal/feed"
	"github.com/FocalizeApp/focalize-daemon/internal/ipc"
	"github.com/FocalizeApp/focalize-daemon/internal/messaging"
	"github.com/FocalizeApp/focalize-daemon/internal/notify"
	"github.com/FocalizeApp/focalize-daemon/internal/pending"
	"github.com/FocalizeApp/focalize-daemon/internal/scheduler"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
)

// Well-known alarm names. Anything else is treated as a pending-action
// identifier.
const (
	AlarmNotifications = "notifications.poll"
	AlarmMessages      = "messages.poll"
)

const badgeKey = "badge.text"

// initialPollDelay spaces the first polls out from process start.
const initialPollDelay = 10 * time.Second

// LockInfo is the daemon lock file contents.
type LockInfo struct {
	PID       int   `json:"pid"`
	StartedAt int64 `json:"started_at"`
}

// Deps are the collaborators the daemon coordinates. Tests substitute
// fakes; cmd/focalized wires the real ones.
type Deps struct {
	Store      store.Store
	Feed       *feed.Poller
	Messages   *messaging.Handler
	Pending    *pending.Tracker
	Dispatcher *notify.Dispatcher
	Scheduler  *scheduler.Scheduler
	Handle     *messaging.Handle
	Keystore   *messaging.Keystore
	IPC        *ipc.Server
	Opener     func(url string) error
	Logger     *log.Logger
}

// Daemon is the long-running background process.
type Daemon struct {
	cfg  config.Config
	deps Deps

	httpSrv   *http.Server
	lockPath  string
	stopCh    chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	loginOpen atomic.Bool
}

// New creates a daemon. The scheduler in deps must have been built
// with d.HandleAlarm as its handler (see Build in cmd wiring).
func New(cfg config.Config, deps Deps) *Daemon {
	return &Daemon{
		cfg:      cfg,
		deps:     deps,
		lockPath: filepath.Join(filepath.Dir(cfg.StorePath), "focalized.lock"),
		stopCh:   make(chan struct{}),
	}
}

// Start acquires the lock and brings up alarms, streams, the keystore
// watcher, and the command API.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.acquireLock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.deps.Scheduler.Set(AlarmNotifications, d.cfg.NotificationsInterval, initialPollDelay)
	d.deps.Scheduler.Set(AlarmMessages, d.cfg.MessagesInterval, initialPollDelay)

	if err := d.deps.Pending.Resume(runCtx); err != nil {
		d.deps.Logger.Printf("daemon: resume pending actions: %v", err)
	}

	if err := d.deps.Keystore.Watch(runCtx, d.onKeyChange); err != nil {
		d.deps.Logger.Printf("daemon: keystore watch: %v", err)
	}

	d.httpSrv = &http.Server{Addr: d.cfg.IPCAddr, Handler: d.deps.IPC.Routes()}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.deps.Logger.Printf("daemon: ipc server: %v", err)
		}
	}()

	d.wg.Add(1)
	go d.streamLoop(runCtx)

	return nil
}

// Stop tears everything down: alarms, streams, the client handle, and
// the command API.
func (d *Daemon) Stop() error {
	close(d.stopCh)
	if d.cancel != nil {
		d.cancel()
	}
	d.deps.Scheduler.Stop()

	if d.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.httpSrv.Shutdown(shutdownCtx)
	}

	d.wg.Wait()
	_ = d.deps.Handle.Close()
	return d.releaseLock()
}

// HandleAlarm routes a fired alarm: the two well-known names go to
// their pollers, anything else is looked up as a pending action and
// silently ignored when unknown.
func (d *Daemon) HandleAlarm(name string) {
	ctx := context.Background()
	switch name {
	case AlarmNotifications:
		d.deps.Feed.Poll(ctx)
	case AlarmMessages:
		d.deps.Messages.Poll(ctx)
	default:
		d.deps.Pending.HandleAlarm(ctx, name)
	}
}

// OnUnauthenticated opens the login surface, once per authentication
// failure streak.
func (d *Daemon) OnUnauthenticated() {
	if !d.loginOpen.CompareAndSwap(false, true) {
		return
	}
	d.deps.Logger.Printf("daemon: feed unauthenticated, opening login surface")
	if err := d.deps.Opener(d.cfg.ContentHost + "/login"); err != nil {
		d.deps.Logger.Printf("daemon: open login: %v", err)
	}
}

// SetBadge persists the derived badge text for the UI to render.
func (d *Daemon) SetBadge(text string) {
	if err := d.deps.Store.Set(context.Background(), store.ScopeLocal, badgeKey, []byte(text)); err != nil {
		d.deps.Logger.Printf("daemon: badge: %v", err)
	}
}

// streamLoop keeps the live message streams running, restarting the
// subscription after drops until shutdown.
func (d *Daemon) streamLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		err := d.deps.Messages.RunStreams(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, messaging.ErrNoKeyMaterial) {
			d.deps.Logger.Printf("daemon: stream: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-time.After(30 * time.Second):
		}
	}
}

// onKeyChange resets the messaging client when this wallet's key
// material changes, so the next use re-resolves it.
func (d *Daemon) onKeyChange(address string) {
	if !strings.EqualFold(address, d.cfg.WalletAddress) {
		return
	}
	d.deps.Logger.Printf("daemon: key material changed, resetting messaging client")
	d.deps.Handle.Reset()
}

// acquireLock creates the lock file, detecting stale locks.
func (d *Daemon) acquireLock() error {
	if data, err := os.ReadFile(d.lockPath); err == nil {
		var info LockInfo
		if json.Unmarshal(data, &info) == nil {
			if syscall.Kill(info.PID, 0) == nil {
				return fmt.Errorf("daemon already running (pid %d)", info.PID)
			}
			// Stale lock from a dead process; take over.
		}
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return err
	}
	info := LockInfo{PID: os.Getpid(), StartedAt: time.Now().Unix()}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(d.lockPath, data, 0o600)
}

func (d *Daemon) releaseLock() error {
	return os.Remove(d.lockPath)
}

// IsLocked reports whether a daemon already holds the lock next to
// storePath.
func IsLocked(storePath string) bool {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(storePath), "focalized.lock"))
	if err != nil {
		return false
	}
	var info LockInfo
	if json.Unmarshal(data, &info) != nil {
		return false
	}
	return syscall.Kill(info.PID, 0) == nil
}
