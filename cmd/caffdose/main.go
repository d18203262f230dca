// Package main provides the CLI entrypoint for caffdose.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/caffdose/internal/config"
	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
	"github.com/verte-zerg/caffdose/internal/regimen"
	"github.com/verte-zerg/caffdose/internal/report"
	"github.com/verte-zerg/caffdose/internal/rootfind"
	"github.com/verte-zerg/caffdose/internal/store"
	"github.com/verte-zerg/caffdose/internal/tui"
)

const (
	defaultMax          = 100.0
	defaultMin          = 40.0
	defaultStart        = "08:00"
	defaultEnd          = "20:00"
	defaultSleep        = "23:00"
	defaultPlotHeight   = 12
	defaultHistoryLimit = 20
)

var (
	planMax   float64
	planMin   float64
	planStart string
	planEnd   string
	planSleep string

	pkAbsorption  float64
	pkElimination float64
	pkMetabolism  string

	plotHeight   int
	plotColor    bool
	plotDisabled bool
	viewColor    bool
	historySave  bool
	outputFormat string

	historyLimit  int
	historyShow   int64
	historyFormat string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "caffdose",
		Short:         "Caffeine dosing planner",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlanCmd,
	}
	addPlanFlags(rootCmd)
	addOutputFlags(rootCmd)

	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&planMax, "max", defaultMax, "peak level to aim for (mg)")
	cmd.Flags().Float64Var(&planMin, "min", defaultMin, "minimum level to maintain (mg)")
	cmd.Flags().StringVar(&planStart, "start", defaultStart, "time to be within range (8.5 or 08:30)")
	cmd.Flags().StringVar(&planEnd, "end", defaultEnd, "end of the dosing window (8.5 or 08:30)")
	cmd.Flags().StringVar(&planSleep, "sleep", defaultSleep, "bedtime for the residual level (8.5 or 08:30)")
	cmd.Flags().Float64Var(&pkAbsorption, "absorption", pk.DefaultAbsorptionHalfLife, "absorption half-life (h)")
	cmd.Flags().Float64Var(&pkElimination, "elimination", pk.DefaultEliminationHalfLife, "elimination half-life (h)")
	cmd.Flags().StringVar(&pkMetabolism, "metabolism", "", "elimination preset: normal, fast or slow")
	cmd.Flags().BoolVar(&historySave, "save", true, "store the plan in history")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&plotHeight, "height", defaultPlotHeight, "chart height in rows")
	cmd.Flags().BoolVar(&plotColor, "color", false, "force coloured chart output")
	cmd.Flags().BoolVar(&plotDisabled, "no-plot", false, "skip the chart")
	cmd.Flags().StringVar(&outputFormat, "format", report.FormatText, "output format: text, json or yaml")
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute and print a dosing regimen",
		Args:  cobra.NoArgs,
		RunE:  runPlanCmd,
	}
	addPlanFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

func runPlanCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := resolvePlanConfig(cmd, fileCfg)
	if err != nil {
		return err
	}
	applyIntConfig(cmd, "height", &plotHeight, fileCfg.Plot.Height)
	applyBoolConfig(cmd, "color", &plotColor, fileCfg.Plot.Color)
	if plotHeight <= 0 {
		return fmt.Errorf("--height must be > 0")
	}
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	res, err := regimen.Run(cfg, regimen.Options{})
	if err != nil {
		return planError(err)
	}
	warnRegimen(res.Regimen)

	out := cmd.OutOrStdout()
	if format != report.FormatText {
		if err := report.WriteExport(out, report.NewExport(cfg, res.Regimen, res.Trace), format); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if err := report.RenderRegimen(out, res.Regimen, res.Trace, cfg.Sleep); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if format == report.FormatText && !plotDisabled {
		chart := report.ChartFor(res.Regimen, res.Trace, cfg.Sleep)
		if err := report.RenderChart(out, chart, 0, plotHeight, plotColor); err != nil {
			return fmt.Errorf("failed to write chart: %w", err)
		}
	}

	if !historySave {
		return nil
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logErrf("failed to open history db: %v\n", err)
		return nil
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	if err := savePlan(context.Background(), st, res.Record(cfg)); err != nil {
		logErrf("failed to save plan: %v\n", err)
	}
	return nil
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the interactive planner",
		Args:  cobra.NoArgs,
		RunE:  runViewCmd,
	}
	addPlanFlags(cmd)
	cmd.Flags().IntVar(&plotHeight, "height", defaultPlotHeight, "chart height in rows")
	cmd.Flags().BoolVar(&viewColor, "color", true, "coloured chart")
	return cmd
}

func runViewCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := resolvePlanConfig(cmd, fileCfg)
	if err != nil {
		return err
	}
	applyIntConfig(cmd, "height", &plotHeight, fileCfg.Plot.Height)
	applyBoolConfig(cmd, "color", &viewColor, fileCfg.Plot.Color)
	if plotHeight <= 0 {
		return fmt.Errorf("--height must be > 0")
	}

	opts := tui.Options{PlotHeight: plotHeight, Color: viewColor}
	if historySave {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		opts.Save = func(rec model.PlanRecord) error {
			return savePlan(context.Background(), st, rec)
		}
	}

	plan := func(c model.PlanConfig) (regimen.Result, error) {
		res, err := regimen.Run(c, regimen.Options{})
		if err != nil {
			return regimen.Result{}, planError(err)
		}
		return res, nil
	}
	program := tea.NewProgram(tui.NewModel(plan, cfg, opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored plans",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "number of plans to list (0 for all)")
	cmd.Flags().Int64Var(&historyShow, "show", 0, "print the doses of plan ID")
	cmd.Flags().StringVar(&historyFormat, "format", report.FormatText, "output format: text, json or yaml")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	format, err := report.ParseFormat(historyFormat)
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return printHistory(context.Background(), cmd.OutOrStdout(), st, historyLimit, historyShow, format)
}

func printHistory(ctx context.Context, w io.Writer, st *store.Store, limit int, show int64, format string) error {
	if show > 0 {
		rec, err := st.GetPlan(ctx, show)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("plan %d not found", show)
		}
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
		if format != report.FormatText {
			return report.WriteExport(w, report.ExportRecord(rec), format)
		}
		return report.RenderPlanRecord(w, rec)
	}
	plans, err := st.ListPlans(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list plans: %w", err)
	}
	if format != report.FormatText {
		exports := make([]report.Export, 0, len(plans))
		for _, p := range plans {
			exports = append(exports, report.ExportRecord(p))
		}
		return report.WriteExport(w, exports, format)
	}
	return report.RenderHistory(w, plans)
}

func savePlan(ctx context.Context, st *store.Store, rec model.PlanRecord) error {
	rec.CreatedAt = time.Now().UTC()
	_, err := st.InsertPlan(ctx, rec)
	return err
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// resolvePlanConfig merges flags with the config file. Flags set on the
// command line win; an explicit --elimination beats any metabolism preset.
func resolvePlanConfig(cmd *cobra.Command, fileCfg config.FileConfig) (model.PlanConfig, error) {
	applyFloatConfig(cmd, "max", &planMax, fileCfg.Plan.Max)
	applyFloatConfig(cmd, "min", &planMin, fileCfg.Plan.Min)
	applyStringConfig(cmd, "start", &planStart, fileCfg.Plan.Start)
	applyStringConfig(cmd, "end", &planEnd, fileCfg.Plan.End)
	applyStringConfig(cmd, "sleep", &planSleep, fileCfg.Plan.Sleep)
	applyFloatConfig(cmd, "absorption", &pkAbsorption, fileCfg.PK.AbsorptionHalfLife)
	applyFloatConfig(cmd, "elimination", &pkElimination, fileCfg.PK.EliminationHalfLife)
	applyStringConfig(cmd, "metabolism", &pkMetabolism, fileCfg.PK.Metabolism)
	applyBoolConfig(cmd, "save", &historySave, fileCfg.History.Enabled)

	if pkMetabolism != "" && !cmd.Flags().Changed("elimination") &&
		(cmd.Flags().Changed("metabolism") || fileCfg.PK.EliminationHalfLife == nil) {
		hl, err := config.MetabolismHalfLife(pkMetabolism)
		if err != nil {
			return model.PlanConfig{}, fmt.Errorf("invalid --metabolism value: %w", err)
		}
		pkElimination = hl
	}

	cfg := model.PlanConfig{
		AbsorptionHalfLife:  pkAbsorption,
		EliminationHalfLife: pkElimination,
		Max:                 planMax,
		Min:                 planMin,
	}
	times := []struct {
		flag  string
		value string
		dst   *float64
	}{
		{"start", planStart, &cfg.Start},
		{"end", planEnd, &cfg.End},
		{"sleep", planSleep, &cfg.Sleep},
	}
	for _, tf := range times {
		v, err := config.ParseHours(tf.value)
		if err != nil {
			return model.PlanConfig{}, fmt.Errorf("invalid --%s value: %w", tf.flag, err)
		}
		*tf.dst = v
	}
	return cfg, nil
}

// planError turns planner failures into user-facing messages while keeping
// the sentinel in the chain.
func planError(err error) error {
	switch {
	case errors.Is(err, pk.ErrInvalidRateConstants):
		return fmt.Errorf("half-lives must be positive and differ: %w", err)
	case errors.Is(err, regimen.ErrInvalidTargets):
		return fmt.Errorf("targets need 0 <= min < max: %w", err)
	case errors.Is(err, regimen.ErrInvalidWindow):
		return fmt.Errorf("window times must be finite: %w", err)
	case errors.Is(err, rootfind.ErrNoBracket):
		return fmt.Errorf("could not bracket a crossing (is min too small relative to max?): %w", err)
	case errors.Is(err, rootfind.ErrNoConvergence):
		return fmt.Errorf("root search did not converge: %w", err)
	case errors.Is(err, regimen.ErrDegenerateResponse):
		return fmt.Errorf("dosing interval produced no residual: %w", err)
	}
	return err
}

func warnRegimen(r model.Regimen) {
	if r.NextClamped {
		logErrln("warning: steady dose clamped to 0 mg")
	}
	if r.Correction.Skipped {
		logErrf("warning: last dose could not be resized; level at end is %.2f mg\n", r.Correction.EndLevel)
	}
	if r.Empty() {
		logErrln("warning: no doses fall inside the window")
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# caffdose configuration
# Uncomment a value to enable it. CLI flags override config values.

[pk]
# absorption-half-life = %.1f   # Absorption half-life (h)
# elimination-half-life = %.1f  # Elimination half-life (h)
# metabolism = "normal"          # Preset: normal (5h), fast (3h), slow (8h)

[plan]
# max = %.1f                     # Peak level to aim for (mg)
# min = %.1f                      # Minimum level to maintain (mg)
# start = %q                  # Time to be within range
# end = %q                    # End of the dosing window
# sleep = %q                  # Bedtime

[plot]
# height = %d                     # Chart height in rows
# color = true                    # Coloured chart

[history]
# enabled = true                  # Store computed plans
`,
		pk.DefaultAbsorptionHalfLife,
		pk.DefaultEliminationHalfLife,
		defaultMax,
		defaultMin,
		defaultStart,
		defaultEnd,
		defaultSleep,
		defaultPlotHeight,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
