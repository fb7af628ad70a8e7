package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/lattice/internal/config"
	"github.com/jacentio/lattice/schema"
)

func newDDLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "Print CREATE TABLE statements for the configured entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			descs, err := cfg.Descriptors()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), schema.DDL(descs...))
			return err
		},
	}
}
