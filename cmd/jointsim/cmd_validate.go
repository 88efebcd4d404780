package main

import (
	"fmt"

	"github.com/akmonengine/tendon/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate SCENE",
	Short: "Check a scene file without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scene, err := config.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d bodies, %d joints\n", args[0], len(scene.Bodies), len(scene.Joints))
		return nil
	},
}
