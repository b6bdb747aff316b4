package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/voxup/internal/server"
	"github.com/desertthunder/voxup/internal/shared"
	"github.com/desertthunder/voxup/internal/tasks"
)

// Upload discovers the library and uploads every pending note, printing progress as it goes.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.Bool("tui") {
		fileLogger, err := shared.NewFileLogger(r.config.Log.File)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		r.SetLogger(fileLogger)
	}

	events := make(chan tasks.ProgressUpdate, 256)
	sess, err := r.openSession(ctx, sessionOpts{
		root:        cmd.String("dir"),
		concurrency: cmd.Int("concurrency"),
		maxAttempts: cmd.Int("max-attempts"),
		events:      events,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	if cmd.Bool("serve") {
		addr := cmd.String("addr")
		if addr == "" {
			addr = r.config.Server.Addr()
		}
		stopServer, err := r.serve(ctx, addr, sess)
		if err != nil {
			return err
		}
		defer stopServer()
	}

	if cmd.Bool("tui") {
		return r.runTUI(ctx, sess, events, cmd.StringSlice("only"))
	}

	stopPrinting := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.printEvents(events, stopPrinting)
	}()

	result, err := sess.engine.Run(ctx, events, cmd.StringSlice("only"))
	close(stopPrinting)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Upload Complete!")
	r.writeSummary(result.Discovery)
	r.writePlain("Queued: %d\n", result.Enqueued)
	r.writePlain("Uploaded: %d\n", result.Uploaded)
	if result.Exhausted > 0 {
		r.writePlain("Failed: %d (run upload again to retry)\n", result.Exhausted)
	}
	if result.Skipped > 0 {
		r.writePlain("Skipped: %d\n", result.Skipped)
	}
	r.writePlain("Took: %s\n", result.Duration.Round(time.Millisecond))
	return nil
}

// printEvents writes engine and queue progress until stop is closed, then flushes what is buffered.
func (r *Runner) printEvents(events <-chan tasks.ProgressUpdate, stop <-chan struct{}) {
	for {
		select {
		case update := <-events:
			r.printEvent(update)
		case <-stop:
			for len(events) > 0 {
				r.printEvent(<-events)
			}
			return
		}
	}
}

func (r *Runner) printEvent(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Discover, tasks.Hash, tasks.CheckRemote:
		r.writePlain("• %s\n", update.Message)
	case tasks.Enqueue:
		r.writePlain("\n📤 %s\n", update.Message)
	case tasks.Uploaded, tasks.Retry, tasks.Exhausted, tasks.Skipped:
		r.writePlain("   %s\n", update.Message)
	case tasks.Dispatch:
		r.logger.Debug(update.Message)
	}
}

// serve starts the status server and returns a function that stops it.
func (r *Runner) serve(ctx context.Context, addr string, sess *session) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := server.NewStatusRouter(
		server.NewStatusHandler(sess.queue, sess.ledger),
		sess.registry.Handler(),
		server.Logging(r.logger),
	)

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(serveCtx, ln, router, r.logger); err != nil {
			r.logger.Error("status server stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
