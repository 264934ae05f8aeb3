package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/RepOrganizer/internal/config"
	"github.com/himanishpuri/RepOrganizer/pkg/logger"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/placement"
	"github.com/himanishpuri/RepOrganizer/pkg/utils"
	"github.com/joho/godotenv"
)

// Global flags
var (
	gameDir    string
	configPath string
	dbPath     string
	noHistory  bool
	tolerance  time.Duration
	timezone   string
	logLevel   string
)

func init() {
	// A .env next to the game is optional.
	_ = godotenv.Load()

	flag.StringVar(&gameDir, "dir", getEnvOrDefault("REPORG_DIR", "."), "Game installation folder (contains MBAA.exe, results.csv and ReplayVS)")
	flag.StringVar(&configPath, "config", getEnvOrDefault("REPORG_CONFIG", ""), "Optional YAML config file")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("REPORG_DB_PATH", ""), "Move history database, relative to the game folder")
	flag.BoolVar(&noHistory, "no-history", false, "Do not record moves (disables history and undo)")
	flag.DurationVar(&tolerance, "tolerance", 0, "Largest accepted lag of a replay behind its results entry (default 40s)")
	flag.StringVar(&timezone, "tz", getEnvOrDefault("REPORG_TZ", ""), "Time zone of replay names and organized dates (default: local)")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("LOG_LEVEL", ""), "Log level: debug, info, warn, error")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	log.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	command := "organize"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	log.Debugf("Executing command: %s", command)

	switch command {
	case "organize":
		os.Exit(handleOrganize(cfg, args))
	case "match":
		os.Exit(handleMatch(cfg, args))
	case "history":
		os.Exit(handleHistory(cfg, args))
	case "undo":
		os.Exit(handleUndo(cfg, args))
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadConfig layers, lowest priority first: defaults, the config file,
// environment variables, explicit flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	given := func(name, env string) bool {
		return set[name] || (env != "" && os.Getenv(env) != "")
	}

	if given("dir", "REPORG_DIR") {
		cfg.GameDir = gameDir
	}
	if given("db", "REPORG_DB_PATH") {
		cfg.History.DBPath = dbPath
	}
	if noHistory {
		disabled := false
		cfg.History.Enabled = &disabled
	}
	if given("tolerance", "") {
		cfg.Tolerance = tolerance
	}
	if given("tz", "REPORG_TZ") {
		cfg.Timezone = timezone
	}
	if given("log-level", "LOG_LEVEL") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createService creates a reporganizer service from the resolved configuration
func createService(cfg *config.Config, extra ...reporganizer.Option) (reporganizer.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []reporganizer.Option{
		reporganizer.WithGameDir(cfg.GameDir),
		reporganizer.WithReplayDir(cfg.ReplayDir),
		reporganizer.WithOutputDir(cfg.OutputDir),
		reporganizer.WithResultsFile(cfg.ResultsFile),
		reporganizer.WithMarkerFiles(cfg.MarkerFiles...),
		reporganizer.WithTolerance(cfg.Tolerance),
		reporganizer.WithLocation(loc),
		reporganizer.WithDBPath(cfg.History.DBPath),
	}
	if !cfg.HistoryEnabled() {
		opts = append(opts, reporganizer.WithoutHistory())
	}
	return reporganizer.NewService(append(opts, extra...)...)
}

// reportErrors prints every leaf of err on its own line.
func reportErrors(err error) {
	log := logger.GetLogger()
	for _, e := range reporganizer.Flatten(err) {
		log.Errorf("%v", e)
	}
}

func handleOrganize(cfg *config.Config, args []string) int {
	log := logger.GetLogger()

	organizeCmd := flag.NewFlagSet("organize", flag.ExitOnError)
	dryRun := organizeCmd.Bool("dry-run", false, "Show what would be moved without moving anything")
	organizeCmd.Parse(args)

	svc, err := createService(cfg, reporganizer.WithDryRun(*dryRun))
	if err != nil {
		reportErrors(err)
		return 1
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := svc.Organize(ctx)
	if err != nil {
		reportErrors(err)
		if summary != nil {
			fmt.Printf("Stopped. %s replay(s) moved.\n", humanize.Comma(int64(summary.Moved)))
		}
		return 1
	}

	if summary.Skipped() > 0 {
		log.Warnf("%d replay(s) skipped: %d without a date, %d without a results entry, %d failed to move",
			summary.Skipped(), summary.Unparsable, summary.Unmatched, summary.Failed)
	}
	if summary.Duplicates > 0 {
		log.Warnf("%d replay(s) share a results entry with another replay", summary.Duplicates)
	}

	if summary.DryRun {
		for _, m := range summary.Moves {
			fmt.Printf("%s -> %s\n", m.Source, m.Destination)
		}
		fmt.Printf("Dry run. %s replay(s) would be moved.\n", humanize.Comma(int64(summary.Moved)))
		return 0
	}

	fmt.Printf("Done. %s replay(s) moved.\n", humanize.Comma(int64(summary.Moved)))
	if summary.Moved > 0 && cfg.HistoryEnabled() {
		fmt.Printf("Run ID: %s (use \"undo\" to revert)\n", summary.RunID)
	}
	return 0
}

func handleMatch(cfg *config.Config, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: reporganizer match <replay_file>")
		return 1
	}

	svc, err := createService(cfg)
	if err != nil {
		reportErrors(err)
		return 1
	}
	defer svc.Close()

	corr, err := svc.Match(context.Background(), args[0])
	if err != nil {
		reportErrors(err)
		return 1
	}

	loc, _ := cfg.Location()
	rec := corr.Record
	fmt.Printf("Replay:  %s\n", corr.Replay.Name)
	fmt.Printf("Match:   results line %d (replay %ds behind the log)\n", rec.Line, corr.SkewSeconds)
	fmt.Printf("Played:  %s\n", rec.Time(loc).Format(placement.DateLayout))
	fmt.Printf("P1:      %s (%s) %d\n", rec.P1Name, rec.P1Char, rec.P1Score)
	fmt.Printf("P2:      %s (%s) %d\n", rec.P2Name, rec.P2Char, rec.P2Score)
	fmt.Printf("Target:  %s\n", corr.Destination)
	return 0
}

func handleHistory(cfg *config.Config, args []string) int {
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := historyCmd.Int("limit", 20, "Number of moves to show (0 for all)")
	historyCmd.Parse(args)

	svc, err := createService(cfg)
	if err != nil {
		reportErrors(err)
		return 1
	}
	defer svc.Close()

	moves, err := svc.History(*limit)
	if err != nil {
		reportErrors(err)
		return 1
	}

	if len(moves) == 0 {
		fmt.Println("No moves recorded yet.")
		return 0
	}

	for _, m := range moves {
		state := ""
		if m.Undone {
			state = " (undone)"
		}
		fmt.Printf("%s  %-20s %s%s\n", humanize.Time(m.MovedAt), m.Opponent, m.Destination, state)
		fmt.Printf("    from %s, run %s\n", m.Source, m.RunID)
	}
	return 0
}

func handleUndo(cfg *config.Config, args []string) int {
	var runID string
	if len(args) > 0 {
		runID = args[0]
		if !utils.IsUUID(runID) {
			fmt.Fprintf(os.Stderr, "Invalid run ID: %s\n", runID)
			return 1
		}
	}

	svc, err := createService(cfg)
	if err != nil {
		reportErrors(err)
		return 1
	}
	defer svc.Close()

	restored, err := svc.Undo(context.Background(), runID)
	if err != nil {
		reportErrors(err)
		if errors.Is(err, reporganizer.ErrNoRuns) {
			return 1
		}
		fmt.Printf("Restored %s replay(s) before failing.\n", humanize.Comma(int64(restored)))
		return 1
	}

	fmt.Printf("Done. %s replay(s) restored.\n", humanize.Comma(int64(restored)))
	return 0
}

func printUsage() {
	fmt.Println("RepOrganizer - sorts MBAACC replays into per-opponent folders")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --dir <path>       Game folder (env: REPORG_DIR, default: .)")
	fmt.Println("  --config <file>    YAML config file (env: REPORG_CONFIG)")
	fmt.Println("  --db <path>        Move history database (env: REPORG_DB_PATH, default: rep-organizer.sqlite3)")
	fmt.Println("  --no-history       Do not record moves")
	fmt.Println("  --tolerance <dur>  Accepted replay lag behind results.csv (default: 40s)")
	fmt.Println("  --tz <zone>        Time zone of replay names (env: REPORG_TZ, default: local)")
	fmt.Println("  --log-level <lvl>  debug, info, warn, error (env: LOG_LEVEL)")
	fmt.Println("\nUsage:")
	fmt.Println("  reporganizer [global-options] [organize] [--dry-run]")
	fmt.Println("  reporganizer [global-options] match <replay_file>")
	fmt.Println("  reporganizer [global-options] history [--limit <n>]")
	fmt.Println("  reporganizer [global-options] undo [run_id]")
	fmt.Println("\nTHIS TOOL MOVES AND RENAMES YOUR REPLAY FILES. Back them up first.")
}
