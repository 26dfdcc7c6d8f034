package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hatlonely/tinymodel/rdb"
	"github.com/hatlonely/tinymodel/rdb/schema"
)

func newDDLCommand(load func() (*rdb.EngineOptions, error)) *cobra.Command {
	var dialect string
	var drop bool

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print CREATE TABLE statements for the declared kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := load()
			if err != nil {
				return err
			}
			if dialect == "" {
				dialect = options.Database.Driver
			}

			registry := schema.NewRegistry()
			if err := registry.LoadFile(options.Schemas); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, kind := range registry.Kinds() {
				s, err := registry.Schema(kind)
				if err != nil {
					return err
				}
				if drop {
					fmt.Fprintf(out, "%s;\n", schema.DropTableSQL(s, schema.Dialect(dialect)))
				}
				fmt.Fprintf(out, "%s;\n\n", schema.CreateTableSQL(s, schema.Dialect(dialect)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "", "mysql or sqlite3, defaults to the configured driver")
	cmd.Flags().BoolVar(&drop, "drop", false, "emit DROP TABLE before each CREATE TABLE")
	return cmd
}
