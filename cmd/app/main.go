package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/bugwall/internal"
	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/contribute"
	"github.com/starford/bugwall/internal/filter"
	"github.com/starford/bugwall/internal/mcpserver"
	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/query"
	"github.com/starford/bugwall/internal/render"
	pkgconfig "github.com/starford/bugwall/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOrDefault(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// components builds the catalog for one-shot commands. Logs go to stderr
// so stdout stays clean for command output.
func components(ctx context.Context, cmd *cli.Command) (*internal.Components, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	return internal.Build(ctx, cfg, logger)
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func list(ctx context.Context, cmd *cli.Command) error {
	comps, err := components(ctx, cmd)
	if err != nil {
		return err
	}
	st := query.Decode(map[string]string{
		query.KeySearch:   cmd.String("search"),
		query.KeyCategory: cmd.String("category"),
		query.KeyStatus:   cmd.String("status"),
		query.KeyLevel:    cmd.String("level"),
		query.KeyDateFrom: cmd.String("from"),
		query.KeyDateTo:   cmd.String("to"),
		query.KeySort:     cmd.String("sort"),
	})
	page, err := comps.Catalog.List(ctx, st, int(cmd.Int("limit")), 0)
	if err != nil {
		if page.Total == 0 {
			return err
		}
		slog.Warn("catalog partially loaded", slog.String("error", err.Error()))
	}
	return printTable(os.Stdout, page.Records, page.Total)
}

func printTable(out io.Writer, records []models.Record, total int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLEVEL\tSTATUS\tDISCOVERED\tCATEGORY\tTITLE")
	for i := range records {
		md := &records[i].Metadata
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			md.ID, md.Level, md.Status, records[i].DateKey, md.Category, md.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d of %d records\n", len(records), total)
	return err
}

func show(ctx context.Context, cmd *cli.Command) error {
	slug := cmd.Args().First()
	if slug == "" {
		return errors.New("slug is required")
	}
	comps, err := components(ctx, cmd)
	if err != nil {
		return err
	}
	rec, err := comps.Catalog.Get(ctx, slug)
	if err != nil {
		if hint, ok := comps.Catalog.Suggest(ctx, slug); ok && errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("%w: %s (did you mean %s?)", err, slug, hint)
		}
		return err
	}
	if cmd.Bool("html") {
		_, err = fmt.Fprintln(os.Stdout, rec.RenderedBody)
		return err
	}
	_, err = fmt.Fprint(os.Stdout, rec.RawBody)
	return err
}

func categories(ctx context.Context, cmd *cli.Command) error {
	comps, err := components(ctx, cmd)
	if err != nil {
		return err
	}
	cats, err := comps.Catalog.Categories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		fmt.Fprintln(os.Stdout, c)
	}
	return nil
}

func renderFile(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r := render.New(render.Options{
		HighlightStyle: cfg.Render.HighlightStyle,
		Logger:         internal.NewLogger(cfg, os.Stderr),
	})

	if cmd.Bool("watch") {
		if name == "" || name == "-" {
			return errors.New("--watch needs a file")
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return render.WatchFile(ctx, r, name, cfg.Watch.Debounce, func(res render.Result) {
			fmt.Fprintf(os.Stdout, "<!-- preview %d -->\n%s\n", res.Seq, res.HTML)
		})
	}

	var data []byte
	switch name {
	case "", "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	html, err := r.RenderFrom(ctx, render.Document(data), name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, html)
	return err
}

func draft(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	d := contribute.Draft{
		ID:           cmd.String("id"),
		Title:        cmd.String("title"),
		Description:  cmd.String("description"),
		Level:        models.Level(strings.ToUpper(cmd.String("level"))),
		Category:     cmd.String("category"),
		Tags:         cmd.StringSlice("tag"),
		DiscoveredAt: cmd.String("date"),
	}
	sub, err := contribute.Prepare(d, cfg.Contribute.Target(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "# %s\n", sub.Path)
	fmt.Fprint(os.Stdout, sub.Markdown)
	if sub.IssueURL != "" {
		fmt.Fprintf(os.Stderr, "\nOpen an issue: %s\n", sub.IssueURL)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	comps, err := components(ctx, cmd)
	if err != nil {
		return err
	}
	if _, err := comps.Catalog.Reload(ctx); err != nil {
		slog.Warn("initial load failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(comps.Catalog, version).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:   "bugwall",
		Usage:  "Vulnerability catalog served from a directory of Markdown documents",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: run,
			},
			{
				Name:  "list",
				Usage: "List records matching a search and filters",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Search text"},
					&cli.StringFlag{Name: "category", Usage: "Exact category"},
					&cli.StringFlag{Name: "status", Usage: "unresolved, resolved, not-applicable or archived"},
					&cli.StringFlag{Name: "level", Usage: "I to V"},
					&cli.StringFlag{Name: "from", Usage: "Earliest discovery date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "to", Usage: "Latest discovery date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "sort", Usage: strings.Join(sortNames(), ", ")},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum rows; 0 lists all"},
				},
				Action: list,
			},
			{
				Name:      "show",
				Usage:     "Print one record's body",
				ArgsUsage: "<slug>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "html", Usage: "Print the rendered HTML instead of Markdown"},
				},
				Action: show,
			},
			{
				Name:   "categories",
				Usage:  "List distinct categories",
				Action: categories,
			},
			{
				Name:      "render",
				Usage:     "Render a Markdown file (or stdin) to HTML",
				ArgsUsage: "[file|-]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Re-render whenever the file changes"},
				},
				Action: renderFile,
			},
			{
				Name:  "draft",
				Usage: "Prepare a new record and its issue link",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "level", Required: true, Usage: "I to V"},
					&cli.StringFlag{Name: "category", Required: true},
					&cli.StringSliceFlag{Name: "tag"},
					&cli.StringFlag{Name: "date", Usage: "Discovery date (YYYY-MM-DD); defaults to today"},
					&cli.StringFlag{Name: "description"},
				},
				Action: draft,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the catalog over MCP on stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func sortNames() []string {
	names := make([]string, 0, len(filter.SortOptions))
	for _, s := range filter.SortOptions {
		names = append(names, string(s))
	}
	return names
}
