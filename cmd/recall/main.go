// Command recall inspects the content store behind the conversation memory
// engine: list references, fetch stored bytes, run the retention sweep.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/basket/recall/internal/config"
	"github.com/basket/recall/internal/contentstore"
	"github.com/basket/recall/internal/doctor"
	"github.com/basket/recall/internal/telemetry"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.2-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

SUBCOMMANDS:
  %s ls [-n <count>]          List recent content references
  %s get <id>                 Write stored bytes for a reference to stdout
  %s gc                       Run the retention sweep now
  %s stats                    Show store occupancy
  %s doctor                   Run environment diagnostics

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  RECALL_HOME             Data directory (default: ~/.recall)
`)
}

func main() {
	home := flag.String("home", config.DefaultHomeDir(), "data directory")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println("recall", Version)
		return
	}

	if err := run(*home, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(homeDir string, args []string) error {
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load(homeDir)
	if err != nil {
		return err
	}

	// doctor opens the store itself, so run it before taking a handle.
	if args[0] == "doctor" {
		return runDoctor(context.Background(), cfg)
	}

	// CLI output goes to stdout; logs stay in the file.
	logger, closer, err := telemetry.NewLogger(homeDir, cfg.Telemetry.Level, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := contentstore.New(contentstore.Config{
		Path:           cfg.Store.Path,
		ThresholdBytes: cfg.Store.ThresholdBytes,
		PreviewChars:   cfg.Store.PreviewChars,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	switch args[0] {
	case "ls":
		return runList(ctx, store, args[1:])
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: recall get <id>")
		}
		return runGet(ctx, store, args[1])
	case "gc":
		return runGC(ctx, store, cfg)
	case "stats":
		return runStats(ctx, store)
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runDoctor(ctx context.Context, cfg *config.Config) error {
	d := doctor.Run(ctx, cfg, Version)
	fmt.Printf("recall %s (%s/%s, %s)\n\n", d.System.Version, d.System.OS, d.System.Arch, d.System.Go)
	for _, r := range d.Results {
		fmt.Printf("  [%-4s] %-12s %s\n", r.Status, r.Name, r.Message)
		if r.Detail != "" {
			fmt.Printf("         %s\n", r.Detail)
		}
	}
	if !d.Healthy() {
		return fmt.Errorf("diagnostics failed")
	}
	return nil
}

func runList(ctx context.Context, store *contentstore.Store, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	count := fs.Int("n", 20, "number of references to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	refList, err := store.List(ctx, *count)
	if err != nil {
		return err
	}
	if len(refList) == 0 {
		fmt.Println("no stored content")
		return nil
	}
	for _, ref := range refList {
		id := ref.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Printf("%s  %-10s %8s  %s\n", id, ref.Kind, contentstore.FormatSize(ref.SizeBytes), ref.Preview)
	}
	return nil
}

func runGet(ctx context.Context, store *contentstore.Store, id string) error {
	data, err := store.Get(ctx, id)
	if errors.Is(err, contentstore.ErrNotFound) {
		// ls prints truncated ids; fall back to a prefix match.
		refList, lerr := store.List(ctx, 1000)
		if lerr != nil {
			return err
		}
		for _, ref := range refList {
			if strings.HasPrefix(ref.ID, id) {
				data, err = store.Get(ctx, ref.ID)
				break
			}
		}
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runGC(ctx context.Context, store *contentstore.Store, cfg *config.Config) error {
	maxAge := time.Duration(cfg.Store.RetentionMaxAgeHours) * time.Hour
	n, err := store.DeleteExpired(ctx, maxAge)
	if err != nil {
		return err
	}
	fmt.Printf("dropped %d expired blobs (max age %s)\n", n, maxAge)
	return nil
}

func runStats(ctx context.Context, store *contentstore.Store) error {
	st, err := store.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("blobs: %d\ntotal:  %s\n", st.Count, contentstore.FormatSize(int(st.TotalBytes)))
	return nil
}
