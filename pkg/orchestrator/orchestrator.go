package orchestrator

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/orbitmesh/orbit/pkg/bus"
	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/pool"
)

// ErrAlreadyConstructed is returned by New when an Orchestrator has already
// been built in this process. Exactly one is permitted, mirroring the
// single top-level runner the rest of this system assumes.
var ErrAlreadyConstructed = errors.New("orchestrator: already constructed")

// Config maps a pool key to the ordered list of services that pool owns.
type Config map[string][]lifecycle.Service

var (
	singletonMu sync.Mutex
	constructed bool
)

// Orchestrator owns one bus and one pool.Pool per configured pool key, and
// drives all of them to completion together.
type Orchestrator struct {
	bus   *bus.Bus
	pools map[string]*pool.Pool
}

// New builds an Orchestrator from cfg. It returns ErrAlreadyConstructed if
// called more than once in this process, and an error if cfg names no pools.
func New(cfg Config) (*Orchestrator, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if constructed {
		return nil, ErrAlreadyConstructed
	}
	if len(cfg) == 0 {
		return nil, errors.New("orchestrator: no pools configured")
	}

	b := bus.New()
	pools := make(map[string]*pool.Pool, len(cfg))
	for key, services := range cfg {
		pools[key] = pool.New(key, services, b)
	}

	constructed = true
	return &Orchestrator{bus: b, pools: pools}, nil
}

// resetForTest clears the singleton guard. It exists only so package tests
// can construct more than one Orchestrator in a single test binary.
func resetForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	constructed = false
}

// Run starts every configured pool concurrently and blocks until ctx is
// cancelled. A pool that fails to create its scheduler logs the error and
// exits on its own; it does not cancel ctx or stop the other pools. On return, every pool has been
// signalled to stop and has finished its shutdown sequence. Run also
// installs its own cancellation on SIGINT/SIGTERM so an Orchestrator run
// from a command line shuts down cleanly on an interrupt even if the caller
// passes context.Background().
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := log.WithComponent("orchestrator")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for key, p := range o.pools {
		key, p := key, p
		g.Go(func() error {
			logger.Info().Str("pool", key).Msg("starting pool")
			p.Run()
			return nil
		})
	}

	<-gctx.Done()
	logger.Info().Msg("shutdown signal received, stopping pools")

	for key, p := range o.pools {
		logger.Info().Str("pool", key).Msg("stopping pool")
		p.Stop()
	}

	return g.Wait()
}

// DumpRegistry returns a diagnostic dump of the shared bus's subscription
// tree.
func (o *Orchestrator) DumpRegistry() string {
	return o.bus.DumpRegistry()
}
