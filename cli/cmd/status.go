package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/assay/cli/config"
	"github.com/justapithecus/assay/cli/render"
	"github.com/justapithecus/assay/cli/tui"
	"github.com/justapithecus/assay/state"
)

// EngineStatusResponse is one engine's row in the status output.
type EngineStatusResponse struct {
	Engine    string `json:"engine"`
	Endpoint  string `json:"endpoint"`
	State     string `json:"state"`
	LastCycle string `json:"last_cycle"`
	Rows      int    `json:"rows"`
	Error     string `json:"error,omitempty"`
}

// StatusCommand returns the status command. It reads the daemon's state
// snapshot from the report directory; no engine is contacted.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show last observed cycle per engine",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Interactive view, refreshed every polling interval",
			},
		),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	dir := resolveReportDir(c)

	fleet, err := state.Load(dir)
	if err != nil {
		if errors.Is(err, state.ErrNoState) {
			return cli.Exit(fmt.Sprintf("no state snapshot in %s (is the daemon running?)", dir), 1)
		}
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("watch") {
		refresh := fleet.Interval
		if refresh <= 0 {
			refresh = 10 * time.Second
		}
		return tui.RunStatusTUI(dir, fleet, refresh)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(statusRows(fleet))
}

// statusRows flattens the snapshot into render-friendly rows, sorted by
// engine name.
func statusRows(fleet *state.Fleet) []EngineStatusResponse {
	names := make([]string, 0, len(fleet.Engines))
	for name := range fleet.Engines {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]EngineStatusResponse, 0, len(names))
	for _, name := range names {
		st := fleet.Engines[name]
		row := EngineStatusResponse{
			Engine:    st.Engine,
			Endpoint:  st.Endpoint,
			LastCycle: st.LastCycle.Format(time.RFC3339),
			Rows:      st.Rows,
			Error:     st.ConnectErr,
		}
		switch {
		case st.ConnectErr != "":
			row.State = "unreachable"
		case !st.OK:
			row.State = "degraded"
		default:
			row.State = "ok"
		}
		rows = append(rows, row)
	}
	return rows
}

// resolveReportDir picks the report directory: the flag wins, then the
// config file, then the current directory.
func resolveReportDir(c *cli.Context) string {
	if c.IsSet("report-dir") {
		return c.String("report-dir")
	}
	if cfg, err := config.Load(c.String("config")); err == nil && cfg.ReportDir != "" {
		return cfg.ReportDir
	}
	return "."
}
