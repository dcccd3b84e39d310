// cmd/scanner is the staff-side QR scanner. It signs in a privilege,
// then verifies every code read from standard input, one per line, as
// typed by a keyboard-wedge barcode scanner.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/AurelionFutureForge/registration-gateway/internal/backend"
	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/scan"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		backendURL string
		email      string
		password   string
		timeout    time.Duration
		verbose    bool
	)
	flagSet := pflag.NewFlagSet("scanner", pflag.ContinueOnError)
	flagSet.StringVar(&backendURL, "backend", os.Getenv("BACKEND_URL"), "base URL of the registration API (default: $BACKEND_URL)")
	flagSet.StringVarP(&email, "email", "e", "", "privilege login email")
	flagSet.StringVarP(&password, "password", "p", "", "privilege login password (default: $SCANNER_PASSWORD)")
	flagSet.DurationVar(&timeout, "timeout", 15*time.Second, "timeout of each API call")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log API calls to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if password == "" {
		password = os.Getenv("SCANNER_PASSWORD")
	}
	if backendURL == "" || email == "" || password == "" {
		printHelp(flagSet)
		return errors.New("--backend, --email and a password are required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	client := backend.New(backend.Options{BaseURL: backendURL, Timeout: timeout})
	session, err := client.PrivilegeLogin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := scan.CheckSession(session, time.Now()); err != nil {
		return err
	}
	fmt.Printf("Signed in for %q at %s (%s). Scan codes, Ctrl-D to quit.\n", session.PrivilegeName, session.EventName, session.CompanyName)

	return scanLoop(ctx, os.Stdin, os.Stdout, scan.NewScanner(client, session, nil))
}

// nextCommand typed on its own line clears the last scan, so the same code
// can be scanned again at once.
const nextCommand = "next"

func scanLoop(ctx context.Context, in io.Reader, out io.Writer, scanner *scan.Scanner) error {
	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		code := strings.TrimSpace(lines.Text())
		switch {
		case code == "":
			continue
		case strings.EqualFold(code, nextCommand):
			scanner.Next()
			fmt.Fprintln(out, "----  ready for next attendee")
			continue
		}

		res, err := scanner.Handle(ctx, code)
		switch {
		case errors.Is(err, scan.ErrDebounced):
			continue
		case err != nil:
			return err
		case res.Verified:
			fmt.Fprintf(out, "OK    %s (%s): %s\n", res.User.Name, res.User.Role, res.Message)
		default:
			fmt.Fprintf(out, "DENY  %s\n", res.Message)
		}
	}
	return lines.Err()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `scanner - verify attendee QR codes for one staff privilege.

Signs in with the privilege credentials issued by the organizer, then
reads one decoded QR code per line from standard input. A code repeated
within 3 seconds is ignored; type "next" to scan it again right away.

Usage:
  scanner --backend URL --email EMAIL [flags]

Flags:
%s`, flagSet.FlagUsages())
}
