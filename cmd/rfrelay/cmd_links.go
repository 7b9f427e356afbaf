package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rfrelay/internal/config"
	"rfrelay/internal/format"
	"rfrelay/internal/logging"
	"rfrelay/internal/report"
	"rfrelay/internal/rp"
)

// longNameWidth caps the TEST column so deeply nested suites keep the table
// readable.
const longNameWidth = 80

var linksFlags struct {
	configPath string
	markdown   bool
}

var linksCmd = &cobra.Command{
	Use:   "links <launch-id|launch-name>",
	Short: "Print Report Portal deep links for a launch's tests",
	Long: "Looks up a launch by its numeric ID, or by name (the most recently\n" +
		"started launch with that name), and prints a deep link per test.",
	Args: cobra.ExactArgs(1),
	RunE: runLinks,
}

func init() {
	f := linksCmd.Flags()
	f.StringVar(&linksFlags.configPath, "config", "", "Path to a YAML config file overlaying the environment")
	f.BoolVar(&linksFlags.markdown, "markdown", false, "Render the table as Markdown")
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if linksFlags.configPath != "" {
		if err := config.LoadInto(linksFlags.configPath, cfg); err != nil {
			return err
		}
	}
	for _, r := range []struct{ value, name string }{
		{cfg.Endpoint, "RP_ENDPOINT"},
		{cfg.Project, "RP_PROJECT"},
		{cfg.Token, "RP_UUID"},
	} {
		if r.value == "" {
			return fmt.Errorf("missing parameter %s: set the environment variable or config field", r.name)
		}
	}

	client, err := rp.New(cfg.Endpoint, cfg.Token, rp.WithLogger(logging.New("rp")))
	if err != nil {
		return err
	}

	launch, err := resolveLaunch(cmd.Context(), client.Project(cfg.Project).Launches(), args[0])
	if err != nil {
		return err
	}

	annotator := report.NewAnnotator(client, cfg.Project, launch.ID)
	links, err := annotator.Links(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Launch: %s #%d (%s)\n", launch.Name, launch.Number, launch.Status)
	fmt.Fprintf(out, "Link: %s\n", annotator.LaunchLink())
	if ci := report.NewCIReport().Link(); ci != "" {
		fmt.Fprintf(out, "CI report: %s\n", ci)
	}
	if len(links) == 0 {
		fmt.Fprintln(out, "No test items found for this launch.")
		return nil
	}

	mode := format.ASCII
	if linksFlags.markdown {
		mode = format.Markdown
	}
	tb := format.NewTable(mode)
	tb.Header("TEST", "LINK")
	for _, link := range links {
		tb.Row(format.Truncate(link.LongName, longNameWidth), link.URL)
	}
	fmt.Fprintln(out, tb.String())
	return nil
}

// resolveLaunch interprets ref as a numeric launch ID, falling back to a name
// lookup that picks the most recently started launch with that name.
func resolveLaunch(ctx context.Context, launches *rp.LaunchScope, ref string) (*rp.LaunchResource, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return launches.Get(ctx, id)
	}
	paged, err := launches.List(ctx,
		rp.WithLaunchName(ref),
		rp.WithSort("startTime,desc"),
		rp.WithPageSize(1),
	)
	if err != nil {
		return nil, err
	}
	if len(paged.Content) == 0 {
		return nil, fmt.Errorf("no launch named %q", ref)
	}
	return &paged.Content[0], nil
}
