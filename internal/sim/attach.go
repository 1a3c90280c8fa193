package sim

import (
	"log/slog"

	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/scenario"
)

// Attach drives sc on one agent of a running world. The runner ticks after
// every world step, under the world lock. With loop set the scenario
// restarts once it ends and the agent is idle. The runner detaches when
// the agent leaves the world.
func Attach(w *agent.World, key string, sc *scenario.Scenario, loop bool, logger *slog.Logger) error {
	var run *scenario.Runner
	err := w.Do(key, func(a *agent.Agent) error {
		run = scenario.NewRunner(sc, a, logger)
		return nil
	})
	if err != nil {
		return err
	}

	dt := w.Rate().Seconds()
	w.OnStep(func([]agent.Status) {
		if run == nil {
			return
		}
		err := w.Do(key, func(a *agent.Agent) error {
			if run.Done() {
				if !loop || !a.IsGazeIdle() {
					return nil
				}
				run = scenario.NewRunner(sc, a, logger)
			}
			run.Tick(dt)
			return nil
		})
		if err != nil {
			logger.Warn("scenario detached", "agent", key, "scenario", sc.Name, "error", err)
			run = nil
		}
	})
	return nil
}
