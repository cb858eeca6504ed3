package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
	"github.com/wbrown/janus-chainjoin/chainjoin/config"
	"github.com/wbrown/janus-chainjoin/chainjoin/join"
	"github.com/wbrown/janus-chainjoin/chainjoin/logutil"
	"github.com/wbrown/janus-chainjoin/chainjoin/runner"
	"github.com/wbrown/janus-chainjoin/chainjoin/sink"
)

type options struct {
	configPath string
	dir        string
	format     string
	outPath    string
	storePath  string
	limit      int
	workers    int
	batchSize  int
	nestedLoop bool
	explain    bool
	verbose    bool
	logLevel   string
	logFile    string
}

func main() {
	var opts options
	var help bool

	flag.StringVar(&opts.configPath, "config", "", "query file (.edn or .toml); default is the S, R, U, T chain")
	flag.StringVar(&opts.dir, "dir", "", "directory holding the relation files (default: config file directory, or .)")
	flag.StringVar(&opts.format, "format", "text", "output format: text, table or count")
	flag.StringVar(&opts.outPath, "out", "", "write results to this file instead of stdout")
	flag.StringVar(&opts.storePath, "store", "", "also persist results into a badger directory")
	flag.IntVar(&opts.limit, "limit", 0, "stop after this many results (0 = all)")
	flag.IntVar(&opts.workers, "workers", 1, "parallel workers for the driving scan")
	flag.IntVar(&opts.batchSize, "batch", 0, "driving rows per parallel batch (0 = default)")
	flag.BoolVar(&opts.nestedLoop, "nested-loop", false, "join without hash indexes")
	flag.BoolVar(&opts.explain, "explain", false, "print the compiled plan and exit")
	flag.BoolVar(&opts.verbose, "verbose", false, "verbose mode (show execution annotations and stats)")
	flag.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default warn, or [log] level in a TOML config)")
	flag.StringVar(&opts.logFile, "log-file", "", "write logs to a rotated file instead of stderr (overrides [log] filename)")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs an equi-join chain over whitespace-separated integer relations.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -dir data                    # S, R, U, T files in ./data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config chain.edn -explain   # Show the plan\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -format table -limit 20      # First 20 results as markdown\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -workers 8 -format count     # Parallel count\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes bad input from bad configuration
func exitCode(err error) int {
	switch {
	case chainjoin.IsInputFormatError(err):
		return 2
	case chainjoin.IsConfigurationError(err):
		return 3
	default:
		return 1
	}
}

func run(opts options) error {
	q := config.Default()
	if opts.configPath != "" {
		var err error
		q, err = config.Load(opts.configPath)
		if err != nil {
			return err
		}
	} else if opts.dir == "" {
		opts.dir = "."
	}

	logCfg := q.LogConfig()
	if opts.logLevel != "" {
		logCfg.Level = opts.logLevel
	}
	if opts.logFile != "" {
		logCfg.Filename = opts.logFile
	}
	logger, err := logutil.SetupLogger(logCfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logutil.Debug("query loaded",
		zap.String("config", opts.configPath),
		zap.Int("stages", len(q.Stages)))

	joinOpts := join.Options{
		Limit:     opts.limit,
		Workers:   opts.workers,
		BatchSize: opts.batchSize,
		Logger:    logger,
	}
	if opts.nestedLoop {
		joinOpts.Strategy = join.StrategyNestedLoop
	}
	if opts.verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		joinOpts.Collector = annotations.NewCollector(formatter.Handle)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.explain {
		p, err := runner.Prepare(ctx, q, opts.dir, joinOpts)
		if err != nil {
			return err
		}
		fmt.Print(p.Explain())
		return nil
	}

	out, closeOut, err := openSink(opts, q)
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := runner.Run(ctx, q, opts.dir, out, joinOpts)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	logutil.Info("chain finished",
		zap.Int64("results", stats.Emitted),
		zap.Int64("driving", stats.Driving),
		zap.Duration("elapsed", time.Since(start)))

	if opts.format == "count" {
		fmt.Println(stats.Emitted)
	}
	if opts.verbose {
		fmt.Fprint(os.Stderr, stats.String())
	}
	if opts.outPath != "" || opts.verbose {
		fmt.Fprintf(os.Stderr, "%s %d results (%.3fms)\n",
			color.GreenString("✓"), stats.Emitted, float64(time.Since(start).Microseconds())/1000.0)
	}
	return nil
}

// openSink builds the sink for the requested format plus a close function
// releasing files and stores once the run ends.
func openSink(opts options, q *config.Query) (chainjoin.Sink, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var primary chainjoin.Sink
	switch opts.format {
	case "count":
		primary = &sink.Count{}

	case "text":
		if opts.outPath == "" {
			primary = sink.Console()
			break
		}
		w, err := sink.CreateFile(opts.outPath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, w.Close)
		primary = w

	case "table":
		w := os.Stdout
		if opts.outPath != "" {
			f, err := os.Create(opts.outPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create output file: %w", err)
			}
			closers = append(closers, f.Close)
			w = f
		}
		primary = sink.NewTable(w, header(q))

	default:
		return nil, nil, fmt.Errorf("unknown format %q (use text, table or count)", opts.format)
	}

	if opts.storePath == "" {
		return primary, closeAll, nil
	}

	store, err := sink.OpenBadger(opts.storePath)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append([]func() error{store.Close}, closers...)
	return sink.Tee{primary, store}, closeAll, nil
}

// header names every output column stage.column
func header(q *config.Query) []string {
	names := make([]string, len(q.Stages))
	widths := make([]int, len(q.Stages))
	for i, st := range q.Stages {
		names[i] = st.As
		if names[i] == "" {
			names[i] = st.Relation
		}
		widths[i] = config.DefaultWidth
		if rel, ok := q.Relation(st.Relation); ok {
			widths[i] = rel.Width
		}
	}
	return sink.Columns(names, widths)
}
