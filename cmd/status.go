package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/voxup/internal/formatter"
	"github.com/desertthunder/voxup/internal/shared"
)

// Status prints or writes a report of the completion ledger.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, ledger, err := r.openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	completions, err := ledger.List()
	if err != nil {
		return err
	}
	report := formatter.NewReport(ledger.Owner(), completions, time.Now())

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteReport(report, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written, "completions", report.Total)
		r.writePlain("✓ Report saved to: %s\n", written)
		return nil
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Reset clears the completion ledger of the current owner.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to forget every recorded upload", shared.ErrMissingArgument)
	}

	db, ledger, err := r.openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	count := ledger.Len()
	if err := ledger.Reset(); err != nil {
		return err
	}

	r.logger.Warn("completion ledger cleared", "owner", ledger.Owner(), "count", count)
	r.writePlain("✓ Forgot %d recorded uploads for %s\n", count, ledger.Owner())
	return nil
}
