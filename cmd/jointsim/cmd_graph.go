package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/config"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph SCENE",
	Short: "Print the island, level and color of every joint",
	Args:  cobra.ExactArgs(1),
	RunE:  printGraph,
}

func printGraph(cmd *cobra.Command, args []string) error {
	scene, err := config.Load(args[0])
	if err != nil {
		return err
	}
	built, err := scene.Build()
	if err != nil {
		return err
	}

	joints := built.World.Joints
	joints.PrepareTick()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOINT\tCHILD\tPARENT\tENABLED\tISLAND\tSIZE\tLEVEL\tCOLOR")

	bodyNames := make(map[*actor.RigidBody]string, len(built.Bodies))
	for name, body := range built.Bodies {
		bodyNames[body] = name
	}
	for _, name := range built.JointNames {
		h := built.Joints[name]
		pair := h.ConstrainedParticles()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%d\t%d\t%d\n",
			name, bodyNames[pair[0]], bodyNames[pair[1]], h.IsEnabled(), h.Island(), h.IslandSize(), h.Level(), h.Color())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d color batches\n", len(joints.ColorBatches()))
	return nil
}
