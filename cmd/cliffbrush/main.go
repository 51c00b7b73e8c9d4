package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"github.com/lawnchairsociety/cliffbrush/internal/config"
	"github.com/lawnchairsociety/cliffbrush/internal/journal"
	"github.com/lawnchairsociety/cliffbrush/internal/logger"
	"github.com/lawnchairsociety/cliffbrush/internal/server"
	"github.com/lawnchairsociety/cliffbrush/internal/session"
	"github.com/lawnchairsociety/cliffbrush/internal/theater"
)

const usage = `Usage: cliffbrush [flags] <command> [command flags]

Commands:
  check                      validate the rule file and theater
  palette -script FILE       replay an event script and print each palette
  serve [-addr ADDR]         run the WebSocket palette service

Flags:
`

func main() {
	configFile := flag.String("config", "data/cliffbrush.yaml", "Path to tool config YAML file")
	loggingConfig := flag.String("logging", "", "Path to logging config YAML file (default: the -config file)")
	rulesFile := flag.String("rules", "", "Path to cliff rules YAML file (overrides config)")
	theaterFile := flag.String("theater", "", "Path to theater YAML file (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Initialize logger first (before any logging)
	if *loggingConfig == "" {
		*loggingConfig = *configFile
	}
	logConfig, err := logger.LoadConfig(*loggingConfig)
	if err != nil {
		log.Printf("Failed to load logging config, using defaults: %v", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *rulesFile != "" {
		cfg.Rules = *rulesFile
	}
	if *theaterFile != "" {
		cfg.Theater = *theaterFile
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "check":
		err = runCheck(cfg, os.Stdout)
	case "palette":
		err = runPalette(cfg, args, os.Stdout)
	case "serve":
		err = runServe(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "command", cmd, "error", err)
		logger.Close()
		os.Exit(1)
	}
}

// loadData reads the rule model and theater named by cfg. Dangling
// forbidden or required references are logged, not rejected.
func loadData(cfg *config.Config) (*cliff.RuleSet, *theater.Theater, error) {
	rules, err := cliff.LoadRulesFromYAML(cfg.Rules)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules %s: %w", cfg.Rules, err)
	}
	for _, ct := range rules.Types() {
		for _, msg := range ct.DanglingReferences() {
			logger.Warning("Rule references unknown tile", "cliff_type", ct.Name, "detail", msg)
		}
	}
	logger.Info("Cliff rules loaded", "path", cfg.Rules, "types", len(rules.Types()), "tiles", rules.TileCount())

	th, err := theater.LoadTheaterFromYAML(cfg.Theater)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load theater %s: %w", cfg.Theater, err)
	}
	logger.Info("Theater loaded", "path", cfg.Theater, "name", th.Name, "tile_sets", len(th.TileSets))

	return rules, th, nil
}

func runCheck(cfg *config.Config, out io.Writer) error {
	rules, th, err := loadData(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Theater %s: %d tile sets, %d tiles\n", th.Name, len(th.TileSets), th.TileCount())

	problems := 0
	for _, ct := range rules.Types() {
		fmt.Fprintf(out, "Cliff type %s: %d tiles in %s\n", ct.Name, len(ct.Tiles), strings.Join(ct.TileSets(), ", "))
		for _, name := range ct.TileSets() {
			if _, ok := th.TileSet(name); !ok {
				fmt.Fprintf(out, "  warning: tile set %q is not in the theater\n", name)
				problems++
			}
		}
		for _, msg := range ct.DanglingReferences() {
			fmt.Fprintf(out, "  warning: %s\n", msg)
			problems++
		}
	}

	if problems > 0 {
		fmt.Fprintf(out, "%d warnings\n", problems)
	} else {
		fmt.Fprintln(out, "OK")
	}
	return nil
}

func runPalette(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("palette", flag.ContinueOnError)
	scriptFile := fs.String("script", "data/events.yaml", "Path to event script YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rules, th, err := loadData(cfg)
	if err != nil {
		return err
	}
	script, err := session.LoadScript(*scriptFile)
	if err != nil {
		return err
	}

	filterEnabled := cfg.Filter.Enabled
	if script.Filter != nil {
		filterEnabled = *script.Filter
	}

	step := 0
	sess, err := session.New(rules, th, session.Options{
		TileSet:       script.TileSet,
		FilterEnabled: filterEnabled,
		Listener: session.ListenerFunc(func(id string, p session.Palette) {
			printPalette(out, fmt.Sprintf("%d", step), p)
		}),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	printPalette(out, "start", sess.Palette())
	for i, ev := range script.Events {
		step = i + 1
		if err := ev.Apply(sess); err != nil {
			fmt.Fprintf(out, "%d: %s rejected: %v\n", step, ev.Type, err)
		}
	}
	return nil
}

func printPalette(out io.Writer, step string, p session.Palette) {
	refs := make([]string, len(p.Tiles))
	for i, t := range p.Tiles {
		refs[i] = t.String()
	}
	mode := "all"
	if p.Filtered {
		mode = "filtered"
	}
	fmt.Fprintf(out, "%s: %s (%s, %d) [%s]\n", step, p.TileSet, mode, len(p.Tiles), strings.Join(refs, " "))
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rules, th, err := loadData(cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(rules, th, cfg)

	if cfg.Journal.Enabled {
		j, err := journal.OpenWithConfig(cfg.Journal.Config)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()
		srv.SetStore(j)
		logger.Info("Session journal enabled", "driver", j.Dialect().DriverName())
	}

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(*addr)
	}()

	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigChan:
	}

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return <-errCh
}
