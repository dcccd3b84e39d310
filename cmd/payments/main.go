// cmd/payments lists the payment returns the gateway could not confirm,
// so support staff can reconcile them with the payment provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/AurelionFutureForge/registration-gateway/internal/config"
	"github.com/AurelionFutureForge/registration-gateway/internal/database"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
	"github.com/AurelionFutureForge/registration-gateway/internal/pricing"
	"github.com/AurelionFutureForge/registration-gateway/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var eventID string
	flagSet := pflag.NewFlagSet("payments", pflag.ContinueOnError)
	flagSet.StringVarP(&eventID, "event", "e", "", "event id to list unconfirmed payments for")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if eventID == "" {
		fmt.Fprintf(os.Stderr, "Usage:\n  payments --event ID\n\nFlags:\n%s", flagSet.FlagUsages())
		return errors.New("--event is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.DB, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	return printPayments(ctx, os.Stdout, repository.NewUnconfirmedPaymentRepository(pool), eventID)
}

type paymentLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.UnconfirmedPayment, error)
}

func printPayments(ctx context.Context, out io.Writer, l paymentLister, eventID string) error {
	payments, err := l.ListByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		fmt.Fprintf(out, "No unconfirmed payments for %s.\n", eventID)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tEMAIL\tTRANSACTION\tAMOUNT")
	for _, p := range payments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.CreatedAt.UTC().Format("2006-01-02 15:04"), p.Email, p.TransactionID, pricing.FormatINR(p.Amount))
	}
	return tw.Flush()
}
