package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/garrison/internal/client/attendance"
	"github.com/dmitrijs2005/garrison/internal/client/changeset"
	"github.com/dmitrijs2005/garrison/internal/client/client"
	"github.com/dmitrijs2005/garrison/internal/client/config"
	"github.com/dmitrijs2005/garrison/internal/client/store"
	"github.com/dmitrijs2005/garrison/internal/client/syncer"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/filex"
	"github.com/dmitrijs2005/garrison/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config    *config.Config
	store     *store.Store
	machine   *attendance.Machine
	extractor *changeset.Extractor
	syncer    *syncer.Manager
	log       logging.Logger

	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	Mode Mode
}

// NewApp opens the local store named in c and wires the device components.
func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, fmt.Errorf("error preparing database directory: %w", err)
	}

	st, err := store.Open(ctx, c.DatabasePath, store.WithLogger(l.With("module", "store")))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	a := newApp(c, st, client.NewHTTPClient(c.ServerURL, nil), l)
	a.reader = bufio.NewReader(os.Stdin)
	a.out = os.Stdout
	return a, nil
}

func newApp(c *config.Config, st *store.Store, cl client.Client, l logging.Logger) *App {
	ex := changeset.NewExtractor(st)
	m := syncer.NewManager(st, ex, cl, syncer.NewStoredCredentials(st, c.AuthToken), st, l,
		syncer.WithTimeout(c.SyncTimeout))

	return &App{
		config:    c,
		store:     st,
		machine:   attendance.NewMachine(st, l.With("module", "attendance")),
		extractor: ex,
		syncer:    m,
		log:       l,
	}
}

// Close releases the local store.
func (a *App) Close() error {
	return a.store.Close()
}

// Run starts the background sync scheduler and blocks in the REPL.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.watchSync(ctx)
	go a.syncer.Run(ctx, a.config.SyncInterval)

	fmt.Fprintln(a.out, "garrison device console (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.log.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

// watchSync follows sync events: a completed cycle means the server is
// reachable, a transport failure means it is not.
func (a *App) watchSync(ctx context.Context) {
	events, stop := a.syncer.Subscribe()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch {
			case ev.OK():
				a.setMode(ModeOnline)
			case errors.Is(ev.Err, common.ErrSyncTransport):
				a.setMode(ModeOffline)
			}
		}
	}
}

func (a *App) isLoggedIn() bool {
	tok, err := a.store.AuthToken(context.Background())
	return err == nil && (tok != "" || a.config.AuthToken != "")
}

func (a *App) getStatus() string {
	if m := a.mode(); m != "" {
		return fmt.Sprintf("(%s)", m)
	}
	return ""
}
