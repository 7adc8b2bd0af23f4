package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"

	"github.com/FocalizeApp/focalize-daemon/internal/api"
	"github.com/FocalizeApp/focalize-daemon/internal/config"
	"github.com/FocalizeApp/focalize-daemon/internal/feed"
	"github.com/FocalizeApp/focalize-daemon/internal/ipc"
	"github.com/FocalizeApp/focalize-daemon/internal/link"
	"github.com/FocalizeApp/focalize-daemon/internal/messaging"
	"github.com/FocalizeApp/focalize-daemon/internal/notify"
	"github.com/FocalizeApp/focalize-daemon/internal/pending"
	"github.com/FocalizeApp/focalize-daemon/internal/profile"
	"github.com/FocalizeApp/focalize-daemon/internal/readstate"
	"github.com/FocalizeApp/focalize-daemon/internal/scheduler"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// Build assembles a daemon with its production collaborators.
func Build(cfg config.Config) (*Daemon, error) {
	logger := log.New(os.Stderr, "focalized ", log.LstdFlags)

	st, err := store.Open(cfg.StorePath, cfg.SyncDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.APIToken)
	keystore := messaging.NewKeystore(cfg.KeystoreDir, logger)
	factory := &messaging.GatewayFactory{
		BaseURL:  cfg.GatewayURL,
		WSURL:    cfg.GatewayWSURL,
		Keystore: keystore,
		Logger:   logger,
	}
	handle := messaging.NewHandle(factory, cfg.WalletAddress)

	reads := readstate.New(st, cfg.WalletAddress)
	profiles := profile.New(st, client, client, logger)
	links := link.New(cfg.ContentHost)
	dispatcher := notify.New(notify.NewBeeepSurface(), links, reads, openURL, logger,
		cfg.GroupNotifications, cfg.PageSize)

	d := New(cfg, Deps{})
	sched := scheduler.New(d.HandleAlarm)

	poller := feed.New(st, client, dispatcher.Dispatch, d.SetBadge, d.OnUnauthenticated,
		logger, cfg.FilteredFeed)
	messages := messaging.NewHandler(st, handle, reads, profiles, dispatcher.Dispatch, logger)
	tracker := pending.New(st, sched, client, func(e types.Event) {
		dispatcher.Dispatch(context.Background(), e)
	}, logger)

	ipcSrv, err := ipc.NewServer(st, poller, messages, tracker, dispatcher, cfg.IPCSecret, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	d.deps = Deps{
		Store:      st,
		Feed:       poller,
		Messages:   messages,
		Pending:    tracker,
		Dispatcher: dispatcher,
		Scheduler:  sched,
		Handle:     handle,
		Keystore:   keystore,
		IPC:        ipcSrv,
		Opener:     openURL,
		Logger:     logger,
	}
	return d, nil
}

// openURL opens a URL in the user's default browser.
func openURL(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
