package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rfrelay/internal/config"
	"rfrelay/internal/events"
	"rfrelay/internal/format"
	"rfrelay/internal/listener"
	"rfrelay/internal/logging"
	"rfrelay/internal/model"
	"rfrelay/internal/report"
	"rfrelay/internal/session"
)

var relayFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

var relayCmd = &cobra.Command{
	Use:   "relay [events-file]",
	Short: "Replay an engine event stream into Report Portal",
	Long: "Reads a JSON-lines event stream produced by the Robot Framework\n" +
		"listener bridge (from a file, or stdin when no file is given),\n" +
		"reconciles it into a result hierarchy and submits it to Report Portal.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRelay,
}

func init() {
	f := relayCmd.Flags()
	f.StringVar(&relayFlags.configPath, "config", "", "Path to a YAML config file overlaying the environment")
	f.StringVar(&relayFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&relayFlags.logFormat, "log-format", "text", "Log format (text, json)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(relayFlags.logLevel)
	if err != nil {
		return err
	}
	logging.Init(level, relayFlags.logFormat)

	cfg := config.FromEnv()
	if relayFlags.configPath != "" {
		if err := config.LoadInto(relayFlags.configPath, cfg); err != nil {
			return err
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open event stream: %w", err)
		}
		defer f.Close()
		in = f
	}

	sess := session.New(logging.New("session"))
	l, err := listener.New(cfg, sess)
	if err != nil {
		return err
	}
	defer l.Close()

	start := time.Now()
	if err := events.Replay(in, l); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if link, err := launchLink(cmd.Context(), sess); err != nil {
		logging.New("relay").Warn("could not resolve launch link", "error", err)
	} else if link != "" {
		fmt.Fprintf(out, "Launch: %s\n", link)
	}
	fmt.Fprintln(out, summaryTable(l.Stats(), time.Since(start)))
	return nil
}

// launchLink resolves the numeric ID of the launch the run reported into and
// returns its UI URL. An empty string means the stream never opened a launch.
func launchLink(ctx context.Context, sess *session.Session) (string, error) {
	if sess.LaunchUUID() == "" || sess.Client() == nil {
		return "", nil
	}
	scope := sess.Project()
	launch, err := scope.Launches().GetByUUID(ctx, sess.LaunchUUID())
	if err != nil {
		return "", err
	}
	return report.NewAnnotator(sess.Client(), scope.Name(), launch.ID).LaunchLink(), nil
}

func summaryTable(stats map[model.Status]int, elapsed time.Duration) string {
	tb := format.NewTable(format.ASCII)
	tb.Header("STATUS", "TESTS")
	tb.AlignRight(2)

	total := 0
	for _, st := range []model.Status{model.StatusPass, model.StatusFail, model.StatusSkip} {
		tb.Row(string(st), stats[st])
		total += stats[st]
	}
	tb.Footer(format.FmtDuration(elapsed), total)
	return tb.String()
}
