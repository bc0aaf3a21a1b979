package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/api"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/config"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/core"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/device"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("moe-serifu", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to config.yaml (defaults apply when omitted)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "moe-serifu %s (%s)\n", version, gitCommit)
		return 0
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	log.Setup(cfg.Log.Level)
	logger := log.WithComponent("main")

	handle, err := core.Init(cfg)
	if err != nil {
		logger.Error("init failed", "error", err)
		return 1
	}

	// The default console output device; plugins may attach more.
	if err := handle.OutputDevices().Add(device.NewWriterDevice("console", stdout)); err != nil {
		logger.Warn("could not attach console output device", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiDone := make(chan error, 1)
	if cfg.API.Listen != "" {
		server := api.New(api.Config{Listen: cfg.API.Listen},
			handle, handle.Plugins(), handle.Notifications(), handle.Journal())
		go func() {
			apiDone <- server.Start(ctx)
		}()
	} else {
		close(apiDone)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	cancel()
	if err := <-apiDone; err != nil {
		logger.Error("api server error", "error", err)
	}

	if err := handle.Quit(); err != nil {
		logger.Error("quit failed", "error", err)
		return 1
	}
	if err := handle.Dispose(); err != nil {
		logger.Error("dispose failed", "error", err)
		return core.DisposeExitCode(err)
	}
	return 0
}
