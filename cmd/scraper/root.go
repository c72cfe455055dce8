package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aluiziolira/booksdata/config"
	"github.com/aluiziolira/booksdata/models"
	"github.com/aluiziolira/booksdata/pipeline"
	"github.com/aluiziolira/booksdata/scraper"
)

// cli carries state shared between the root command and its subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:           "booksdata",
		Short:         "Scrape a book catalogue category into a table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default $BOOKSDATA_CONFIG)")
	flags.String("base-url", "", "catalogue base URL")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.Int("max-concurrency", 0, "concurrent fetches per cohort (0 = unbounded)")
	flags.Int("cache-size", 0, "per-session body cache entries (0 = disabled)")
	flags.StringSlice("nameserver", nil, "DNS nameserver host:port (repeatable)")
	flags.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	bindFlags(c.v, flags, map[string]string{
		"base_url":        "base-url",
		"timeout":         "timeout",
		"max_concurrency": "max-concurrency",
		"cache_size":      "cache-size",
		"nameservers":     "nameserver",
		"metrics_addr":    "metrics-addr",
		"verbose":         "verbose",
	})

	cmd.AddCommand(newScrapeCmd(c), newCategoriesCmd(c))
	return cmd
}

// bindFlags lets set flags override file and environment values. Unset flags
// fall through to the config defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func (c *cli) load() error {
	path := c.cfgFile
	if path == "" {
		path, _ = config.EnvString("BOOKSDATA_CONFIG")
	}

	cfg, err := config.Load(c.v, path)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = cfg

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	return nil
}

func newScrapeCmd(c *cli) *cobra.Command {
	opts := pipeline.DefaultOptions()
	var preview int

	cmd := &cobra.Command{
		Use:   "scrape <category>",
		Short: "Scrape every product of a category and export it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), cmd.OutOrStdout(), c.cfg, args[0], opts, preview)
		},
	}

	flags := cmd.Flags()
	flags.StringP("format", "f", "", "output format: df, csv, excel, or json")
	flags.StringP("output", "o", "", "output file for csv, excel and json")
	flags.BoolVar(&opts.ProductNameAsIndex, "index", opts.ProductNameAsIndex, "use the product name as the index column")
	flags.BoolVar(&opts.RatingAsFloat, "rating", opts.RatingAsFloat, "convert rating words to numbers")
	flags.BoolVar(&opts.ParseCurrency, "currency", opts.ParseCurrency, "extract the currency symbol into its own column")
	flags.BoolVar(&opts.ParsePrices, "prices", opts.ParsePrices, "parse price and tax columns")
	flags.BoolVar(&opts.ParseAvailability, "availability", opts.ParseAvailability, "parse availability into stock counts")
	flags.IntVar(&preview, "preview", 5, "rows to print for the df format")
	bindFlags(c.v, flags, map[string]string{
		"output_format": "format",
		"output_file":   "output",
	})

	return cmd
}

func runScrape(ctx context.Context, out io.Writer, cfg *config.Config, category string, opts pipeline.Options, preview int) error {
	if err := pipeline.ValidateFormat(cfg.OutputFormat, cfg.OutputFile); err != nil {
		return err
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}
	stopMetrics := startMetricsServer(cfg.MetricsAddr, s.Metrics)
	defer stopMetrics()

	slog.Info("starting scrape",
		slog.String("base_url", s.Transport().BaseURL()),
		slog.String("category", category),
		slog.String("format", cfg.OutputFormat),
	)

	start := time.Now()
	var table *models.Table
	err = s.WithSession(ctx, func(ctx context.Context, s *scraper.Scraper) error {
		var err error
		table, err = s.SaveData(ctx, category, cfg.OutputFormat, cfg.OutputFile, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("scraping failed: %w", err)
	}

	printSummary(out, table, cfg, time.Since(start))
	if cfg.OutputFormat == config.FormatDataFrame {
		printPreview(out, table, preview)
	}
	return nil
}

func newCategoriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the catalogue's categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := scraper.NewScraper(c.cfg)
			if err != nil {
				return fmt.Errorf("initialising scraper: %w", err)
			}
			return s.WithSession(cmd.Context(), func(ctx context.Context, s *scraper.Scraper) error {
				names, err := s.Categories(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func printSummary(out io.Writer, table *models.Table, cfg *config.Config, duration time.Duration) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Scrape complete")
	fmt.Fprintf(out, "  Rows:          %d\n", table.Len())
	fmt.Fprintf(out, "  Columns:       %d\n", len(table.Columns()))
	if index := table.Index(); index != "" {
		fmt.Fprintf(out, "  Index:         %s\n", index)
	}
	fmt.Fprintf(out, "  Format:        %s\n", cfg.OutputFormat)
	if cfg.OutputFormat != config.FormatDataFrame && !table.Empty() {
		fmt.Fprintf(out, "  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Fprintf(out, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintln(out, separator)
}

func printPreview(out io.Writer, table *models.Table, rows int) {
	if table.Empty() || rows <= 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(table.Columns(), "\t"))
	for r := 0; r < table.Len() && r < rows; r++ {
		row := table.Row(r)
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cell.String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	if table.Len() > rows {
		fmt.Fprintf(out, "... %d more rows\n", table.Len()-rows)
	}
}
