package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/voxup/internal/tasks"
)

// Scan discovers the library, records notes already on the server and lists every note with its status.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.openSession(ctx, sessionOpts{root: cmd.String("dir")})
	if err != nil {
		return err
	}
	defer sess.Close()

	result, err := sess.engine.Discover(ctx, nil)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Voice notes in %s", result.Root))
	for _, s := range result.Items {
		r.writePlain("%-10s %s\n", s.Status, s.Item.Name)
	}
	r.writeSummary(result)
	return nil
}

func (r *Runner) writeSummary(result *tasks.DiscoverResult) {
	r.writePlain("\nFound %d: %d pending, %d uploaded, %d already on server", len(result.Items), result.Pending, result.Uploaded, result.Remote)
	if result.Unhashable > 0 {
		r.writePlain(", %d unreadable", result.Unhashable)
	}
	r.writePlain("\n")
}
