package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/alimasry/go-docops/config"
	"github.com/alimasry/go-docops/engine"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/server"
	"github.com/alimasry/go-docops/store"
)

// Globals are the flags every command shares.
type Globals struct {
	Config    string `help:"Configuration file (YAML)." short:"c" type:"path"`
	Verbosity *int   `help:"Log verbosity, overrides the configuration file." short:"v"`
}

type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the editing server."`
	Replay ReplayCmd `cmd:"" help:"Apply an operation log and print the log extracted from the result."`
	Verify VerifyCmd `cmd:"" help:"Check that extraction is stable for each operation log."`
}

func (g *Globals) load() (config.Config, logr.Logger, error) {
	cfg, err := config.LoadFile(g.Config)
	if err != nil {
		return config.Config{}, logr.Logger{}, err
	}
	if g.Verbosity != nil {
		cfg.Log.Verbosity = *g.Verbosity
	}
	stdr.SetVerbosity(cfg.Log.Verbosity)
	return cfg, stdr.New(log.New(os.Stderr, "", log.LstdFlags)), nil
}

func engineOptions(cfg config.Config, logger logr.Logger) []engine.Option {
	return []engine.Option{
		engine.WithLogger(logger),
		engine.WithListPolicy(cfg.ListPolicy()),
		engine.WithSheetLimits(cfg.SheetLimits()),
	}
}

type ServeCmd struct {
	Addr    string `help:"HTTP listen address, overrides the configuration file."`
	Backend string `help:"Store backend, overrides the configuration file."`
}

func (s *ServeCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Addr = s.Addr
	}
	if s.Backend != "" {
		cfg.Store.Backend = s.Backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	hub := server.NewHub(st, server.Options{
		CompactEvery: cfg.Session.CompactEvery,
		OpsPerSecond: cfg.Session.OpsPerSecond,
		Burst:        cfg.Session.Burst,
		Engine:       engineOptions(cfg, logger),
		Log:          logger,
	})
	go hub.Run()

	srv := &http.Server{Addr: cfg.Addr, Handler: server.NewHandler(hub)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("starting server", "addr", cfg.Addr, "store", cfg.Store.Backend)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	hub.Close()
	return multierr.Append(err, closeStore())
}

// openStore builds the configured store. Firestore sits behind a write-behind
// cache; the returned close function flushes it.
func openStore(ctx context.Context, cfg config.Config, logger logr.Logger) (store.DocumentStore, func() error, error) {
	if cfg.Store.Backend != config.BackendFirestore {
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	client, err := store.DialFirestore(ctx, cfg.Store.FirestoreProject, cfg.Store.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}
	cached := store.NewCachedStore(store.NewFirestoreStore(client), cfg.Store.FlushInterval, logger)
	return cached, func() error {
		return multierr.Append(cached.Close(), client.Close())
	}, nil
}

type ReplayCmd struct {
	Log    string `arg:"" help:"Operation log, JSON or JSON5." type:"existingfile"`
	Intern bool   `help:"Move direct formatting into shared automatic styles before extracting."`
}

func (r *ReplayCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	return replay(os.Stdout, r.Log, r.Intern, engineOptions(cfg, logger))
}

func replay(w io.Writer, path string, intern bool, opts []engine.Option) error {
	input, err := ops.LoadFile(path)
	if err != nil {
		return err
	}
	d := engine.New(opts...)
	if n, err := d.Replay(input); err != nil {
		return fmt.Errorf("%s: applied %d of %d operations: %w", path, n, len(input), err)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if intern {
		if err := d.InternStyles(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	out, err := d.Extract()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type VerifyCmd struct {
	Logs []string `arg:"" help:"Operation logs, JSON or JSON5." type:"existingfile"`
	Jobs int      `help:"Logs checked in parallel." default:"4"`
}

func (v *VerifyCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	return verify(os.Stdout, v.Logs, v.Jobs, engineOptions(cfg, logger))
}

// verify checks every log concurrently and prints one line per log in
// argument order.
func verify(w io.Writer, paths []string, jobs int, opts []engine.Option) error {
	results := make([]error, len(paths))
	prints := make([]uint64, len(paths))

	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, path := range paths {
		g.Go(func() error {
			prints[i], results[i] = verifyLog(path, opts)
			return nil
		})
	}
	g.Wait()

	var errs error
	for i, path := range paths {
		if results[i] != nil {
			fmt.Fprintf(w, "FAIL %s\n", path)
			errs = multierr.Append(errs, results[i])
			continue
		}
		fmt.Fprintf(w, "ok   %s %016x\n", path, prints[i])
	}
	return errs
}

// verifyLog replays a log, extracts it, replays the extraction and checks the
// second extraction matches the first.
func verifyLog(path string, opts []engine.Option) (uint64, error) {
	input, err := ops.LoadFile(path)
	if err != nil {
		return 0, err
	}
	d, err := engine.Load(input, opts...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	first, err := d.Extract()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	again, err := engine.Load(first, opts...)
	if err != nil {
		return 0, fmt.Errorf("%s: replay extracted log: %w", path, err)
	}
	second, err := again.Extract()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if diff := ops.Diff(first, second); diff != "" {
		return 0, fmt.Errorf("%s: extraction is not stable (-first +second):\n%s", path, diff)
	}
	return ops.Fingerprint(first)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("docops"),
		kong.Description("Operation-addressed document engine and editing server."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
