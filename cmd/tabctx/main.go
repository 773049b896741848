package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xonecas/tabctx/internal/config"
	"github.com/xonecas/tabctx/internal/crawler"
	"github.com/xonecas/tabctx/internal/lsp"
	"github.com/xonecas/tabctx/internal/source"
)

var (
	flagConfig string
	flagFile   string
	flagOffset int
	flagDepth  int
	flagText   bool
)

func main() {
	root := &cobra.Command{
		Use:           "tabctx",
		Short:         "Context snippets for code completion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to TOML config file")

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl for a file and cursor offset, print snippets as JSON",
		RunE:  runCrawl,
	}
	crawlCmd.Flags().StringVar(&flagFile, "file", "", "source file")
	crawlCmd.Flags().IntVar(&flagOffset, "offset", 0, "cursor byte offset")
	crawlCmd.Flags().IntVar(&flagDepth, "depth", 0, "crawl depth (overrides config)")
	crawlCmd.Flags().BoolVar(&flagText, "text", false, "print snippets as plain text instead of JSON")
	_ = crawlCmd.MarkFlagRequired("file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Read crawl requests from stdin as JSON lines, answer on stdout",
		RunE:  runServe,
	}

	root.AddCommand(crawlCmd, serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tabctx: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, wires logging, and builds the crawler with its
// collaborators.
func setup() (*config.Config, *crawler.Crawler, *lsp.Manager, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Log.LevelOrDefault())
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	reader, err := source.NewReader(cfg.Cache.FilesOrDefault())
	if err != nil {
		return nil, nil, nil, err
	}

	depth := cfg.Crawl.DepthOrDefault()
	if flagDepth > 0 {
		depth = flagDepth
	}

	manager := lsp.NewManager(cfg.Servers)
	return cfg, crawler.New(manager, reader, depth), manager, nil
}

// runCrawl performs a one-shot crawl and prints the snippets.
func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, c, manager, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer manager.StopAll(context.Background())

	contents, err := os.ReadFile(flagFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", flagFile, err)
	}

	snippets := c.Snippets(ctx, flagFile, string(contents), flagOffset, nil)
	if max := cfg.Crawl.MaxSnippetsOrDefault(); len(snippets) > max {
		snippets = snippets[:max]
	}

	if flagText {
		fmt.Print(renderText(snippets))
		return nil
	}
	out, err := renderJSON(snippets)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
