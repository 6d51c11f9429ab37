package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/hperssn/stride/internal/config"
	"github.com/hperssn/stride/internal/logging"
)

// Version is injected at build time via -ldflags "-X main.Version=..."
var Version = "dev"

type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Debug   bool             `help:"Enable debug logging" short:"d" env:"DEBUG"`
	LogFile string           `help:"Write logs to this file instead of stderr" type:"path"`

	Serve   ServeCmd   `cmd:"" help:"Run the session timer service" default:"1"`
	Catalog CatalogCmd `cmd:"catalog" help:"Suggest exercises for a calorie target"`

	cfg config.Config `kong:"-"`
}

// AfterApply merges flags over the loaded config and initializes logging.
func (c *CLI) AfterApply() error {
	if c.Debug {
		c.cfg.Debug = true
	}
	if c.LogFile != "" {
		c.cfg.LogFile = c.LogFile
	}
	return logging.Initialize(c.cfg.Debug, c.cfg.LogFile)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	cli := CLI{cfg: cfg}
	ctx := kong.Parse(&cli,
		kong.Name("stride"),
		kong.Description("Exercise session timer service"),
		kong.Vars{"version": Version},
		kong.UsageOnError(),
		kong.Bind(&cli),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
