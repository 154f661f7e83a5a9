// Package main provides the CLI entrypoint for countline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/countline/internal/browse"
	"github.com/verte-zerg/countline/internal/chart"
	"github.com/verte-zerg/countline/internal/config"
	"github.com/verte-zerg/countline/internal/logging"
	"github.com/verte-zerg/countline/internal/model"
	"github.com/verte-zerg/countline/internal/portal"
	"github.com/verte-zerg/countline/internal/report"
	"github.com/verte-zerg/countline/internal/weekly"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultDirection   = "total"
	defaultPlotHeight  = 12
	defaultImageWidth  = 10.0
	defaultImageHeight = 5.0
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
)

var (
	metadataURL string
	timeout     time.Duration
	area        string
	logLevel    string
	logFormat   string

	reportModes           string
	reportFiles           []string
	reportFlushIncomplete bool
	reportLegacyWeekKey   bool

	plotDirections []string
	plotWidth      int
	plotHeight     int
	plotColor      bool
	plotOut        string
	imageWidth     float64
	imageHeight    float64
)

// settings is the merged result of defaults, config file and flags.
type settings struct {
	sensors     []string
	modes       []model.Mode
	selection   chart.Selection
	locations   map[string]string
	annotations model.Annotations
	options     weekly.Options
	source      report.Source
	logger      *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "countline [sensors...]",
		Short:         "Weekly traffic counts from city sensors",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.ArbitraryArgs,
		RunE:          runPlotCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&metadataURL, "metadata-url", config.DefaultMetadataURL, "CKAN package_show URL listing the sensors")
	flags.DurationVar(&timeout, "timeout", defaultTimeout, "HTTP timeout")
	flags.StringVar(&area, "area", config.DefaultArea, "area name used in chart titles")
	flags.StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", defaultLogFormat, "log format (text, json)")

	addReportFlags(rootCmd)
	addRenderFlags(rootCmd)

	rootCmd.AddCommand(newPlotCmd())
	rootCmd.AddCommand(newSensorsCmd())
	rootCmd.AddCommand(newWeeksCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&reportModes, "modes", model.ModeList(model.DefaultModes), "comma-separated transport modes to sum")
	cmd.Flags().StringArrayVar(&reportFiles, "file", nil, "read a sensor from a local CSV (sensor=path, repeatable)")
	cmd.Flags().BoolVar(&reportFlushIncomplete, "flush-incomplete", false, "keep the final, possibly partial, week")
	cmd.Flags().BoolVar(&reportLegacyWeekKey, "legacy-week-key", false, "compare week numbers without the year")
}

func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&plotDirections, "direction", []string{defaultDirection}, "directions to plot (in, out, total, all)")
	cmd.Flags().IntVar(&plotWidth, "width", 0, "plot width in columns (0 fits the terminal)")
	cmd.Flags().IntVar(&plotHeight, "height", defaultPlotHeight, "plot height in rows")
	cmd.Flags().BoolVar(&plotColor, "color", false, "force ANSI colors")
	cmd.Flags().StringVar(&plotOut, "out", "", "write the chart to an image (.png or .svg) instead of the terminal")
	cmd.Flags().Float64Var(&imageWidth, "image-width", defaultImageWidth, "image width in inches")
	cmd.Flags().Float64Var(&imageHeight, "image-height", defaultImageHeight, "image height in inches")
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [sensors...]",
		Short: "Plot weekly counts",
		RunE:  runPlotCmd,
	}
	addReportFlags(cmd)
	addRenderFlags(cmd)
	return cmd
}

func runPlotCmd(cmd *cobra.Command, args []string) error {
	st, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	rep, err := buildReport(cmd.Context(), st)
	if err != nil {
		return err
	}

	req := chart.Request{
		Title:       chart.Title(area, rep.Modes),
		Annotations: st.annotations,
	}
	for _, s := range rep.Sensors {
		req.Lines = append(req.Lines, chart.LinesFromSeries(s.Label, s.Series, st.selection)...)
	}
	if plotOut != "" {
		if err := chart.Save(plotOut, req, imageWidth, imageHeight); err != nil {
			return err
		}
		st.logger.Info("wrote chart", "path", plotOut)
		return nil
	}
	if err := chart.Render(cmd.OutOrStdout(), req, plotWidth, plotHeight, plotColor); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func buildReport(ctx context.Context, st settings) (report.Report, error) {
	return report.Build(ctx, st.source, report.Request{
		Sensors:   st.sensors,
		Modes:     st.modes,
		Locations: st.locations,
		Options:   st.options,
	}, st.logger)
}

func newSensorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sensors",
		Short: "List sensors published by the portal",
		Args:  cobra.NoArgs,
		RunE:  runSensorsCmd,
	}
}

func runSensorsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, logger, err := loadBase(cmd)
	if err != nil {
		return err
	}
	client := portal.NewClient(metadataURL, timeout, logger)
	resources, err := client.Sensors(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sensors: %w", err)
	}
	if len(resources) == 0 {
		return fmt.Errorf("portal lists no sensors")
	}
	locations := fileCfg.LocationMap()
	rows := make([][]string, 0, len(resources))
	for _, r := range resources {
		rows = append(rows, []string{r.Name, locations[r.Name], r.RevisionTimestamp})
	}
	for _, line := range chart.FormatTable([]string{"Sensor", "Location", "Revised"}, rows, nil) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newWeeksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weeks <sensor>",
		Short: "Print the weekly table of one sensor",
		Args:  cobra.ExactArgs(1),
		RunE:  runWeeksCmd,
	}
	addReportFlags(cmd)
	return cmd
}

func runWeeksCmd(cmd *cobra.Command, args []string) error {
	st, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	rep, err := buildReport(cmd.Context(), st)
	if err != nil {
		return err
	}
	s := rep.Sensors[0]
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.Label, model.ModeList(rep.Modes)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return chart.RenderTable(cmd.OutOrStdout(), s.Series)
}

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse [sensors...]",
		Short: "Browse sensors interactively",
		RunE:  runBrowseCmd,
	}
	addReportFlags(cmd)
	cmd.Flags().StringSliceVar(&plotDirections, "direction", []string{defaultDirection}, "directions to plot (in, out, total, all)")
	return cmd
}

func runBrowseCmd(cmd *cobra.Command, args []string) error {
	st, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	rep, err := buildReport(cmd.Context(), st)
	if err != nil {
		return err
	}
	err = browse.Run(cmd.Context(), rep, browse.Options{
		Area:        area,
		Annotations: st.annotations,
		Selection:   st.selection,
	})
	if err != nil {
		return fmt.Errorf("failed to run browser: %w", err)
	}
	return nil
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
	if err := writeConfigTemplate(path); err != nil {
		return err
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

// writeConfigTemplate creates the config file unless it already exists.
func writeConfigTemplate(path string) error {
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
	return nil
}

// loadBase reads the config file, applies its persistent settings and
// builds the logger.
func loadBase(cmd *cobra.Command) (config.FileConfig, *slog.Logger, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "metadata-url", &metadataURL, fileCfg.Portal.MetadataURL)
	applyStringConfig(cmd, "area", &area, fileCfg.Portal.Area)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Log.Format)
	if !cmd.Flags().Changed("timeout") {
		timeout, err = fileCfg.Timeout(timeout)
		if err != nil {
			return config.FileConfig{}, nil, err
		}
	}
	if timeout <= 0 {
		return config.FileConfig{}, nil, fmt.Errorf("--timeout must be > 0")
	}
	logger, err := logging.New(os.Stderr, logLevel, logFormat)
	if err != nil {
		return config.FileConfig{}, nil, err
	}
	return fileCfg, logger, nil
}

func loadSettings(cmd *cobra.Command, args []string) (settings, error) {
	fileCfg, logger, err := loadBase(cmd)
	if err != nil {
		return settings{}, err
	}
	if fileCfg.Plot.Modes != nil && !cmd.Flags().Changed("modes") {
		reportModes = strings.Join(fileCfg.Plot.Modes, ",")
	}
	applyStringSliceConfig(cmd, "direction", &plotDirections, fileCfg.Plot.Directions)
	applyIntConfig(cmd, "width", &plotWidth, fileCfg.Plot.Width)
	applyIntConfig(cmd, "height", &plotHeight, fileCfg.Plot.Height)
	applyBoolConfig(cmd, "color", &plotColor, fileCfg.Plot.Color)
	applyBoolConfig(cmd, "flush-incomplete", &reportFlushIncomplete, fileCfg.Aggregate.FlushIncomplete)
	applyBoolConfig(cmd, "legacy-week-key", &reportLegacyWeekKey, fileCfg.Aggregate.LegacyWeekKey)

	if err := validateConfig(); err != nil {
		return settings{}, err
	}

	st := settings{
		locations: fileCfg.LocationMap(),
		logger:    logger,
		options:   weekly.Options{FlushIncomplete: reportFlushIncomplete},
	}
	if reportLegacyWeekKey {
		st.options.WeekKey = weekly.KeyWeekOnly
	}
	if st.modes, err = model.ParseModes(reportModes); err != nil {
		return settings{}, err
	}
	if st.selection, err = chart.ParseSelection(plotDirections); err != nil {
		return settings{}, err
	}
	if st.annotations, err = fileCfg.AnnotationSet(); err != nil {
		return settings{}, err
	}

	files, err := report.ParseFileSource(reportFiles)
	if err != nil {
		return settings{}, err
	}
	switch {
	case len(args) > 0:
		st.sensors = args
	case len(files) > 0:
		st.sensors = files.Sensors()
	case len(fileCfg.Plot.Sensors) > 0:
		st.sensors = fileCfg.Plot.Sensors
	default:
		st.sensors = config.DefaultSensors
	}
	if len(files) > 0 {
		st.source = files
	} else {
		st.source = report.NewPortalSource(portal.NewClient(metadataURL, timeout, logger))
	}
	return st, nil
}

func validateConfig() error {
	if plotWidth < 0 {
		return fmt.Errorf("--width must be >= 0")
	}
	if plotHeight <= 0 {
		return fmt.Errorf("--height must be > 0")
	}
	if imageWidth <= 0 || imageHeight <= 0 {
		return fmt.Errorf("--image-width and --image-height must be > 0")
	}
	return nil
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

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
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

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func defaultConfigTemplate() string {
	modes := make([]string, len(model.DefaultModes))
	for i, m := range model.DefaultModes {
		modes[i] = string(m)
	}
	return fmt.Sprintf(`# countline configuration
# Uncomment a value to enable it. CLI flags override config values.

[portal]
# metadata-url = %q
# timeout = %q            # HTTP timeout
# area = %q            # Area name in chart titles

[plot]
# sensors = [%s]
# modes = [%s]
# directions = [%q]     # in, out, total or all
# width = 0                 # Plot width in columns (0 fits the terminal)
# height = %d
# color = false             # Force ANSI colors

[aggregate]
# flush-incomplete = false  # Keep the final, possibly partial, week
# legacy-week-key = false   # Compare week numbers without the year

[log]
# level = %q
# format = %q             # text or json

# Locations override the built-in sensor labels.
# [locations]
# "Sensor 1: Mill Road" = "362 Mill Rd"

# Declaring any event or band replaces all built-in key dates.
# [[events]]
# date = "2020-03-23"
# label = "1st Lockdown"
#
# [[bands]]
# start = "2019-07-01"
# end = "2019-09-01"        # Leave out to run to the last week
# label = "Bridge Closed '19"
`,
		config.DefaultMetadataURL,
		defaultTimeout.String(),
		config.DefaultArea,
		quoteList(config.DefaultSensors),
		quoteList(modes),
		defaultDirection,
		defaultPlotHeight,
		defaultLogLevel,
		defaultLogFormat,
	)
}
