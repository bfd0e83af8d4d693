package main

import (
	"github.com/spf13/cobra"
)

// configFile is the optional YAML file shared by all subcommands.
var configFile string

// NewRootCmd creates the root command of the coursehub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "coursehub",
		Short:        "CourseHub - course enrollment site",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
