package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bamsammich/treesync/internal/config"
	"github.com/bamsammich/treesync/internal/engine"
	"github.com/bamsammich/treesync/internal/filter"
	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/stats"
	"github.com/bamsammich/treesync/internal/syncer"
	"github.com/bamsammich/treesync/internal/transport"
	"github.com/bamsammich/treesync/internal/ui"
	"github.com/bamsammich/treesync/internal/watch"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// options holds the parsed command line.
type options struct {
	filters         []string
	filterFile      string
	recycle         string
	renameThreshold sizeFlag
	bwLimit         sizeFlag
	sshKeyFile      string
	logFile         string
	debounce        time.Duration
	workers         int
	sshPort         int
	deleteExtra     bool
	noRenames       bool
	forceUpdate     bool
	verifyRenames   bool
	ignoreCase      bool
	ignoreHidden    bool
	dryRun          bool
	watch           bool
	verbose         bool
	quiet           bool
	noColor         bool
	showVersion     bool
}

func run(args []string) int {
	args, err := expandArgFiles(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	var opts options
	rootCmd := newRootCmd(&opts)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treesync [flags] <source> <destination>",
		Short: "Make a destination directory tree match a source tree",
		Long: `treesync makes the destination tree mirror the source tree: new files are
copied, changed files updated, and files that moved in the source are renamed
in the destination instead of being copied again. Either side may be a remote
directory reached over SFTP (user@host/path or sftp://user@host:port/path).

Arguments starting with '!' name a file whose lines are read as further
arguments.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(os.Stdout, "treesync %s\n", version)
				return nil
			}
			return opts.sync(cmd, args[0], args[1])
		},
	}

	f := rootCmd.Flags()
	f.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	f.StringArrayVar(&opts.filters, "filter", nil,
		`filter string of include (+) and exclude (-) patterns; repeatable (default "**")`)
	f.StringVar(&opts.filterFile, "filter-file", "", "read the filter string from FILE")
	f.BoolVarP(&opts.ignoreCase, "ignore-case", "I", false, "match filter patterns case-insensitively")
	f.BoolVarP(&opts.ignoreHidden, "ignore-hidden", "H", false, "wildcards do not match names starting with '.'")
	f.BoolVarP(&opts.deleteExtra, "delete", "x", false, "delete destination entries that are not in the source")
	f.StringVar(&opts.recycle, "recycle", "",
		`move destination entries that are not in the source into a per-run timestamped subdirectory of DIR ("auto" for a Trash_<timestamp> directory next to the destination)`)
	f.Lookup("recycle").NoOptDefVal = syncer.AutoRecycle
	f.Var(&opts.renameThreshold, "rename-threshold", "only detect renames of files at least SIZE (e.g. 10K, 1M)")
	f.BoolVar(&opts.noRenames, "no-renames", false, "never detect renames; copy instead")
	f.BoolVar(&opts.verifyRenames, "verify-renames", false,
		"confirm renames by comparing the last 1 KiB of both files")
	f.BoolVarP(&opts.forceUpdate, "force-update", "F", false,
		"replace destination files that are newer than the source")
	f.BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would change without changing anything")
	f.BoolVarP(&opts.watch, "watch", "w", false, "keep running and sync again whenever the source changes")
	f.DurationVar(&opts.debounce, "debounce", watch.DefaultDebounce, "quiet period before a watch-triggered sync")
	f.IntVarP(&opts.workers, "workers", "j", 0, "number of concurrent actions (default: min(NumCPU*2, 16))")
	f.Var(&opts.bwLimit, "bwlimit", "bandwidth limit in bytes per second (e.g. 10M)")
	f.StringVar(&opts.sshKeyFile, "ssh-key", "", "SSH private key file (default: auto-detect)")
	f.IntVar(&opts.sshPort, "ssh-port", 22, "SSH port")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	f.StringVar(&opts.logFile, "log", "", "also write a structured JSON log to FILE")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.MarkFlagsMutuallyExclusive("delete", "recycle")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("filter", "filter-file")

	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: wires every flag into the sync configuration
func (o *options) sync(cmd *cobra.Command, rawSrc, rawDst string) error {
	// Logging comes first so config warnings reach the --log file.
	closeLog, err := o.setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	// Load optional config file.
	cfg, err := config.Load()
	var unknown *config.UnknownKeysError
	switch {
	case errors.As(err, &unknown):
		slog.Warn("ignoring unknown config keys", "path", unknown.Path, "keys", unknown.Keys)
	case err != nil:
		slog.Warn("failed to load config", "error", err)
	}
	color := ui.IsTTY(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""
	applyConfigDefaults(cmd, cfg.Defaults, o, &color)
	if o.noColor {
		color = false
	}
	ui.ApplyTheme(cfg.Theme)

	scfg, err := o.syncerConfig(rawSrc, rawDst)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return &exitError{code: 2}
	}
	if o.watch && scfg.Source.IsRemote() {
		slog.Error("--watch needs a local source", "source", scfg.Source.String())
		return &exitError{code: 2}
	}

	quiet, verbose, dryRun := o.quiet, o.verbose, o.dryRun
	scfg.Presenter = func(c *stats.Collector) ui.Presenter {
		return ui.NewPresenter(ui.Config{
			Writer:    os.Stdout,
			ErrWriter: os.Stderr,
			Stats:     c,
			Color:     color,
			Quiet:     quiet,
			Verbose:   verbose,
			DryRun:    dryRun,
			Progress:  ui.IsTTY(os.Stderr.Fd()),
		})
	}
	if !o.quiet {
		scfg.SummaryWriter = os.Stderr
	}

	s, err := syncer.New(scfg)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return &exitError{code: 2}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.dryRun {
		slog.Info("dry run mode")
	}
	slog.Debug("starting sync",
		"source", scfg.Source.String(),
		"dest", scfg.Dest.String(),
		"workers", scfg.Workers,
		"watch", o.watch,
	)

	if o.watch {
		w, err := watch.New(scfg.Source.Path, watch.Options{Rules: scfg.Rules, Debounce: o.debounce})
		if err != nil {
			slog.Error("cannot watch source", "error", err)
			return &exitError{code: 2}
		}
		defer w.Close()
		if err := s.Watch(ctx, w.Requests()); err != nil {
			slog.Error("sync failed", "error", err)
			return &exitError{code: 2}
		}
		return nil
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		slog.Error("sync failed", "error", err)
		return &exitError{code: 2}
	}
	if n := res.Failed(); n > 0 {
		slog.Error("sync finished with failures", "failed", n)
		return &exitError{code: 1}
	}
	return nil
}

// syncerConfig validates the flags and turns them into a sync
// configuration. Errors here are user input errors.
func (o *options) syncerConfig(rawSrc, rawDst string) (syncer.Config, error) {
	src, err := transport.ParseLocation(rawSrc)
	if err != nil {
		return syncer.Config{}, fmt.Errorf("source: %w", err)
	}
	dst, err := transport.ParseLocation(rawDst)
	if err != nil {
		return syncer.Config{}, fmt.Errorf("destination: %w", err)
	}

	filterStr := filter.DefaultFilter
	switch {
	case o.filterFile != "":
		filterStr, err = filter.LoadFile(o.filterFile)
		if err != nil {
			return syncer.Config{}, err
		}
	case len(o.filters) > 0:
		filterStr = strings.Join(o.filters, " ")
	}
	rules, err := filter.Compile(filterStr, filter.Options{
		IgnoreCase:   o.ignoreCase,
		IgnoreHidden: o.ignoreHidden,
	})
	if err != nil {
		return syncer.Config{}, fmt.Errorf("invalid filter: %w", err)
	}

	cfg := syncer.Config{
		Source:        src,
		Dest:          dst,
		Rules:         rules,
		ForceUpdate:   o.forceUpdate,
		VerifyRenames: o.verifyRenames,
		NoRenames:     o.noRenames,
		DryRun:        o.dryRun,
		Workers:       o.workers,
		SSH: transport.SSHOpts{
			Port:    o.sshPort,
			KeyFile: o.sshKeyFile,
			Prompt:  transport.TerminalPrompt,
		},
	}
	if cfg.Workers <= 0 {
		cfg.Workers = engine.DefaultWorkers()
	}

	switch {
	case o.deleteExtra:
		cfg.Extraneous = plan.Remove
	case o.recycle != "":
		cfg.Extraneous = plan.MoveToRecycle
		cfg.RecycleDir = o.recycle
	}

	cfg.RenameThreshold = o.renameThreshold.val
	if o.bwLimit.val != nil {
		cfg.BWLimit = int64(*o.bwLimit.val) //nolint:gosec // G115: bandwidth limits fit in int64
	}
	return cfg, nil
}

// setupLogging installs the default logger. The returned func closes the
// log file, if any.
func (o *options) setupLogging() (func(), error) {
	logLevel := slog.LevelWarn
	if o.verbose {
		logLevel = slog.LevelDebug
	} else if !o.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	closer := func() {}
	if o.logFile != "" {
		lf := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
		// Fail early on an unwritable path rather than on the first record.
		if _, err := io.WriteString(lf, ""); err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
		closer = func() { _ = lf.Close() }
	}
	slog.SetDefault(slog.New(logHandler))
	return closer, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
//
//nolint:gocyclo // one branch per config key
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, o *options, color *bool) {
	flags := cmd.Flags()
	if !flags.Changed("workers") && defaults.Workers != nil {
		o.workers = *defaults.Workers
	}
	if !flags.Changed("rename-threshold") && defaults.RenameThreshold != nil {
		if err := o.renameThreshold.Set(*defaults.RenameThreshold); err != nil {
			slog.Warn("invalid rename_threshold in config", "error", err)
		}
	}
	if !flags.Changed("verify-renames") && defaults.VerifyRenames != nil {
		o.verifyRenames = *defaults.VerifyRenames
	}
	if !flags.Changed("ignore-hidden") && defaults.IgnoreHidden != nil {
		o.ignoreHidden = *defaults.IgnoreHidden
	}
	if !flags.Changed("ignore-case") && defaults.IgnoreCase != nil {
		o.ignoreCase = *defaults.IgnoreCase
	}
	if !flags.Changed("bwlimit") && defaults.BWLimit != nil {
		if err := o.bwLimit.Set(*defaults.BWLimit); err != nil {
			slog.Warn("invalid bwlimit in config", "error", err)
		}
	}
	if !flags.Changed("debounce") && defaults.Debounce != nil {
		if d, err := time.ParseDuration(*defaults.Debounce); err == nil {
			o.debounce = d
		} else {
			slog.Warn("invalid debounce in config", "value", *defaults.Debounce, "error", err)
		}
	}
	if !flags.Changed("ssh-key") && defaults.SSHKey != nil {
		o.sshKeyFile = *defaults.SSHKey
	}
	if defaults.Color != nil {
		*color = *color && *defaults.Color
	}
}

// sizeFlag is a byte size flag accepting K/M/G/T suffixes. It stays nil
// until set.
type sizeFlag struct {
	val *uint64
}

var _ pflag.Value = (*sizeFlag)(nil)

func (s *sizeFlag) String() string {
	if s.val == nil {
		return ""
	}
	return strconv.FormatUint(*s.val, 10)
}

func (*sizeFlag) Type() string { return "size" }

func (s *sizeFlag) Set(v string) error {
	n, err := filter.ParseSize(v)
	if err != nil {
		return err
	}
	s.val = &n
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
