// gazeserve - Runs a world of gaze agents at a fixed rate and serves the
// HTTP control API and the websocket state stream.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/internal/sim"
	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/scenario"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func main() {
	addr := flag.String("addr", config.Addr(), "HTTP listen address (overrides GAZE_ADDR)")
	rigs := flag.String("rig", config.RigPath("rigs/toon.yaml"), "Comma-separated rig files, one agent each")
	scenarioPath := flag.String("scenario", "", "Scenario to run on every agent (optional)")
	loop := flag.Bool("loop", false, "Restart the scenario when it ends")
	tick := flag.Duration("tick", config.TickRate(), "World tick period (overrides GAZE_TICK)")
	every := flag.Int("broadcast-every", 1, "Send a state frame every N ticks")
	accessLog := flag.Bool("access-log", false, "Log every HTTP request")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)

	world := agent.NewWorld(*tick, log.L())
	var ids []string
	for _, path := range strings.Split(*rigs, ",") {
		if path = strings.TrimSpace(path); path == "" {
			continue
		}
		rig, err := agent.LoadRig(path)
		if err != nil {
			log.Error("load rig", "path", path, "error", err)
			os.Exit(1)
		}
		a, err := agent.FromRig(rig, log.L())
		if err != nil {
			log.Error("build agent", "path", path, "error", err)
			os.Exit(1)
		}
		ids = append(ids, world.Add(a))
	}

	if *scenarioPath != "" {
		sc, err := scenario.Load(*scenarioPath)
		if err != nil {
			log.Error("load scenario", "error", err)
			os.Exit(1)
		}
		for _, id := range ids {
			if err := sim.Attach(world, id, sc, *loop, log.L()); err != nil {
				log.Error("attach scenario", "agent", id, "error", err)
				os.Exit(1)
			}
		}
	}

	srv := web.NewServer(web.Config{
		Addr:           *addr,
		BroadcastEvery: *every,
		AccessLog:      *accessLog,
	}, world, log.L())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return world.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	log.Info("gazeserve started", "addr", *addr, "agents", len(ids), "tick", *tick)
	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("gazeserve stopped")
}
