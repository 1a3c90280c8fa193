// gazesim - Headless gaze simulation: runs scenarios against rigs and
// writes per-tick CSV traces plus a shift-duration summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/internal/sim"
)

func main() {
	rigPath := flag.String("rig", config.RigPath("rigs/toon.yaml"), "Rig file (overrides GAZE_RIG)")
	scenarios := flag.String("scenario", config.ScenarioPath("scenarios/tour.yaml"), "Comma-separated scenario files")
	fps := flag.Float64("fps", 30, "Simulated frames per second")
	maxTime := flag.Float64("max-time", 120, "Simulated seconds before a run gives up")
	traceDir := flag.String("trace", "", "Directory for CSV traces (disabled when empty)")
	asJSON := flag.Bool("json", false, "Print results as JSON")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.InitWriter(level, os.Stderr)

	if *fps <= 0 {
		log.Error("fps must be positive", "fps", *fps)
		os.Exit(2)
	}
	if *traceDir != "" {
		if err := os.MkdirAll(*traceDir, 0o755); err != nil {
			log.Error("create trace directory", "error", err)
			os.Exit(1)
		}
	}

	var jobs []sim.Job
	for _, sc := range strings.Split(*scenarios, ",") {
		if sc = strings.TrimSpace(sc); sc == "" {
			continue
		}
		jobs = append(jobs, sim.Job{
			RigPath:      *rigPath,
			ScenarioPath: sc,
			DT:           1 / *fps,
			MaxTime:      *maxTime,
			TraceDir:     *traceDir,
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results, err := sim.RunAll(ctx, jobs, log.L())
	if err != nil {
		log.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			log.Error("encode results", "error", err)
			os.Exit(1)
		}
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tSCENARIO\tTIME\tFRAMES\tSHIFTS\tMEAN\tSTD\tFAILED\tDONE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.2fs\t%d\t%d\t%.3fs\t%.3fs\t%d\t%v\n",
			r.Agent, r.Scenario, r.Time, r.Frames, len(r.Shifts), r.MeanShift, r.StdShift, r.Failed, r.Finished)
	}
	tw.Flush()
}
