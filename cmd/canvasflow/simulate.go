package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/kchakrav/CRMApp-sub002/pkg/log"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/simulator"
	"github.com/urfave/cli/v3"
)

const defaultMaxSteps = 1000

var ErrStepLimit = errors.New("simulation did not finish within the step limit")

// stepScheduler never fires on its own. The command drives the run by calling Advance.
type stepScheduler struct{}

func (stepScheduler) Start(func()) error { return nil }

func (stepScheduler) Stop() {}

func NewSimulateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "simulate",
		Aliases:   []string{"s"},
		Usage:     "Step through a workflow as the canvas simulator would",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "signal-all",
				Usage: "Deliver the signal of every external signal node instead of timing it out",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Seed of the synthetic metrics (0 picks one from the clock)",
			},
			&cli.IntFlag{
				Name:  "max-steps",
				Usage: "Abort a run that loops for longer than this many steps",
				Value: defaultMaxSteps,
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			g, path, err := loadGraph(command)
			if err != nil {
				return err
			}

			opts := []simulator.Option{
				simulator.WithScheduler(stepScheduler{}),
				simulator.WithLogger(log.WithModule("cli")),
			}

			if seed := command.Int("seed"); seed != 0 {
				opts = append(opts, simulator.WithRand(rand.New(rand.NewSource(int64(seed)))))
			}

			sim := simulator.New(path, g, opts...)
			if err := sim.Start(); err != nil {
				return err
			}

			metrics := sim.State().Metrics
			maxSteps := command.Int("max-steps")

			for {
				state := sim.State()

				switch {
				case state.Finished:
					_, _ = fmt.Fprintf(out, "Simulation completed in %d step(s)\n", state.Steps)

					return nil
				case state.Steps >= maxSteps:
					return fmt.Errorf("%w: %d", ErrStepLimit, maxSteps)
				case state.WaitingNodeID != "":
					if err := resolveWait(out, sim, state.WaitingNodeID, command.Bool("signal-all")); err != nil {
						return err
					}
				case state.Running:
					id, err := sim.Advance()
					if err != nil {
						return err
					}

					status := sim.State().Statuses[id]
					m := metrics[id]
					_, _ = fmt.Fprintf(out, "%3d  %-40s %-10s count=%d elapsed=%dms\n",
						state.Steps+1, nodeLabel(g, id), status, m.Count, m.ElapsedMs)
				default:
					return simulator.ErrNotRunning
				}
			}
		},
	}
}

func resolveWait(out io.Writer, sim *simulator.Simulator, nodeID string, signal bool) error {
	if signal {
		_, _ = fmt.Fprintf(out, "     %s: signal %s\n", nodeID, models.NodeStatusReceived)

		return sim.Signal(nodeID)
	}

	_, _ = fmt.Fprintf(out, "     %s: %s\n", nodeID, models.NodeStatusTimedOut)

	return sim.Timeout(nodeID)
}
