package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/akmonengine/tendon"
	"github.com/akmonengine/tendon/config"
	"github.com/akmonengine/tendon/constraint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	runSteps       int     // Number of world steps
	runDt          float64 // Step duration in seconds
	runPrintEvery  int     // Print the body positions every N steps, 0 disables
	runWorkers     int     // Overrides the scene workers when positive
	runMetricsAddr string  // Serves /metrics on this address when set
)

var runCmd = &cobra.Command{
	Use:   "run SCENE",
	Short: "Step a scene and print the body positions",
	Args:  cobra.ExactArgs(1),
	RunE:  runScene,
}

func init() {
	runCmd.Flags().IntVar(&runSteps, "steps", 600, "Number of steps to simulate")
	runCmd.Flags().Float64Var(&runDt, "dt", 1.0/60, "Step duration in seconds")
	runCmd.Flags().IntVar(&runPrintEvery, "print-every", 60, "Print body positions every N steps (0 disables)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Solver workers, overrides the scene when positive")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runScene(cmd *cobra.Command, args []string) error {
	if runSteps < 0 || runDt <= 0 {
		return fmt.Errorf("invalid run parameters: steps=%d dt=%v", runSteps, runDt)
	}

	scene, err := config.Load(args[0])
	if err != nil {
		return err
	}
	built, err := scene.Build()
	if err != nil {
		return err
	}

	w := built.World
	w.SetLogger(slog.Default())
	if runWorkers > 0 {
		w.Workers = runWorkers
	}

	if runMetricsAddr != "" {
		server := &http.Server{Addr: runMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "addr", runMetricsAddr, "error", err)
			}
		}()
		defer server.Close()
		slog.Info("serving metrics", "addr", runMetricsAddr)
	}

	names := make(map[constraint.JointHandle]string, len(built.Joints))
	for name, handle := range built.Joints {
		names[handle] = name
	}

	broken := 0
	w.Events.Subscribe(tendon.ON_JOINT_BREAK, func(event tendon.Event) {
		broken++
		e := event.(tendon.JointBreakEvent)
		slog.Info("joint broken", "joint", names[e.Joint])
	})

	slog.Info("running scene", "scene", args[0], "bodies", len(w.Bodies), "joints", w.Joints.NumConstraints(), "steps", runSteps, "workers", w.Workers)

	out := cmd.OutOrStdout()
	start := time.Now()
	for step := 1; step <= runSteps; step++ {
		w.Step(runDt)

		if runPrintEvery > 0 && step%runPrintEvery == 0 {
			fmt.Fprintf(out, "step %d t=%.3fs\n", step, float64(step)*runDt)
			for _, name := range built.BodyNames {
				body := built.Bodies[name]
				if !body.IsDynamic() {
					continue
				}
				p := body.Transform.Position
				fmt.Fprintf(out, "  %-16s % .4f % .4f % .4f sleeping=%t\n", name, p.X(), p.Y(), p.Z(), body.IsSleeping)
			}
		}
	}

	slog.Info("scene done", "steps", runSteps, "elapsed", time.Since(start), "broken", broken)
	fmt.Fprintf(out, "done: %d steps, %d joints broken\n", runSteps, broken)
	return nil
}
