package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/trainer/config"
	"github.com/rustyeddy/trainer/internal/id"
	"github.com/rustyeddy/trainer/journal"
	"github.com/rustyeddy/trainer/market"
	"github.com/rustyeddy/trainer/metrics"
	"github.com/rustyeddy/trainer/server"
	"github.com/rustyeddy/trainer/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a training session",
	Long: `Run a training session against a random-walk or replayed price feed.

Settings come from the config file when given, then TRAINER_* environment
variables, then flags. With --interactive, orders are entered on stdin
(type "help" for the list).

Examples:
  trainer run --ticks 600
  trainer run -f trainer.yaml --interactive
  trainer run --replay ticks.csv --metrics-addr :9090`,
	RunE: runRun,
}

type runOptions struct {
	configPath  string
	ticks       int
	interactive bool
	metricsAddr string
	replay      string
	orgPath     string
	printEvery  int
}

var runOpts runOptions

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runOpts.configPath, "config", "f", "", "path to config file (YAML or JSON)")
	f.IntVarP(&runOpts.ticks, "ticks", "n", 0, "stop after this many ticks (0 runs until interrupted)")
	f.BoolVarP(&runOpts.interactive, "interactive", "i", false, "read trading commands from stdin")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve /metrics and /snapshot on this address")
	f.StringVar(&runOpts.replay, "replay", "", "replay prices from a CSV file instead of the random walk")
	f.StringVar(&runOpts.orgPath, "org", "", "write the run summary as an Org file")
	f.IntVar(&runOpts.printEvery, "print-every", 0, "print a status line every N ticks")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runOpts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("ticks") {
		cfg.Simulation.Ticks = runOpts.ticks
	}
	if flags.Changed("replay") {
		cfg.Simulation.ReplayFile = runOpts.replay
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = runOpts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var in io.Reader
	if runOpts.interactive {
		in = os.Stdin
	}
	return runTrainer(ctx, cfg, runOpts, in, cmd.OutOrStdout())
}

// loadConfig reads path when set, otherwise starts from the defaults, and
// applies the environment (including any env file) on top.
func loadConfig(path string) (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// syncWriter lets the tick loop, the notifier and the command reader share
// one output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runTrainer drives one session until the tick budget is spent, the feed
// ends, ctx is cancelled or the user quits. in may be nil.
func runTrainer(ctx context.Context, cfg *config.Config, opts runOptions, in io.Reader, w io.Writer) error {
	out := &syncWriter{w: w}
	log := logrus.StandardLogger()

	j, err := journal.Open(cfg.JournalOptions())
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s, err := session.New(cfg.Session(),
		session.WithJournal(j),
		session.WithMetrics(m),
		session.WithLogger(log),
		session.WithNotifier(session.NotifierFunc(func(e session.Event) {
			printEvent(out, e)
		})),
	)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		srv := server.New(cfg.Metrics.Addr, reg, s.Snapshot, log)
		srv.Start()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				log.WithError(err).Warn("status server shutdown")
			}
		}()
	}

	var src market.PriceSource
	if cfg.Simulation.ReplayFile != "" {
		rp, err := market.OpenReplay(cfg.Simulation.ReplayFile)
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		defer rp.Close()
		src = rp
	} else {
		src = market.NewRandomWalk(cfg.Simulation.StartPrice, cfg.Simulation.Step, cfg.Simulation.Seed)
	}

	interval, err := cfg.Simulation.ParseTickInterval()
	if err != nil {
		return fmt.Errorf("tick interval: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if in != nil {
		fmt.Fprintln(out, `Type "help" for commands.`)
		go readCommands(in, s, out, cancel)
	}

	ticks := 0
	err = s.Run(ctx, src, interval, func(snap session.Snapshot) {
		ticks++
		if opts.printEvery > 0 && ticks%opts.printEvery == 0 {
			fmt.Fprintln(out, statusLine(snap))
		}
		if cfg.Simulation.Ticks > 0 && ticks >= cfg.Simulation.Ticks {
			cancel()
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	session.WriteReport(out, s.Snapshot())

	run := s.Summary(id.New())
	if rr, ok := j.(journal.RunRecorder); ok {
		if err := rr.RecordRun(run); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	if opts.orgPath != "" {
		if err := run.SaveOrg(opts.orgPath); err != nil {
			return fmt.Errorf("save org: %w", err)
		}
		fmt.Fprintf(out, "\nRun summary saved to: %s\n", opts.orgPath)
	}
	return nil
}

func statusLine(snap session.Snapshot) string {
	phase := snap.Challenge.PhaseKey
	if snap.Challenge.FullyTrained {
		phase = "free"
	}
	return fmt.Sprintf("%s  price %.2f  bal %.2f  eq %.2f  open %d  %s x%d  [%s %.0f%%]",
		snap.Time.Format("15:04:05.000"), snap.CurrentPrice, snap.Balance, snap.Equity,
		len(snap.Open), snap.Contract, snap.LotSize, phase, snap.Progress)
}

func printEvent(w io.Writer, e session.Event) {
	switch e.Kind {
	case session.PhaseAdvanced:
		fmt.Fprintf(w, ">>> Phase complete! Advancing to %s phase %d\n", e.Level, e.Ordinal)
	case session.ChallengeFailed:
		fmt.Fprintf(w, ">>> Challenge failed in %s (%s). Restarting at %s\n", e.PhaseKey, e.Message, e.NextKey)
	case session.TrainingComplete:
		fmt.Fprintln(w, ">>> Training complete! Lot limits are lifted.")
	case session.PhaseReset:
		fmt.Fprintf(w, ">>> %s restarted\n", e.PhaseKey)
	default:
		fmt.Fprintf(w, ">>> %s %s\n", e.Kind, e.Message)
	}
}
