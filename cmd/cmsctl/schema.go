package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cms-graphql/internal/sqlutil"
	"cms-graphql/internal/store"
)

var schemaProvider string

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print schemas generated from the list definitions",
	}
	cmd.PersistentFlags().StringVarP(&schemaProvider, "provider", "p", store.ProviderPostgreSQL, "database provider for sql and prisma output")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "graphql",
			Short: "Print the GraphQL schema as SDL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				result, _, err := buildSchema(cmd.Context(), listsFile)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), printSDL(result.GraphQLSchema))
				return err
			},
		},
		&cobra.Command{
			Use:   "sql",
			Short: "Print CREATE TABLE statements",
			Example: `  # Tables for MySQL
  cmsctl schema sql --provider mysql --lists lists.yaml`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dialect, err := sqlutil.DialectFor(schemaProvider)
				if err != nil {
					return err
				}
				result, _, err := buildSchema(cmd.Context(), listsFile)
				if err != nil {
					return err
				}
				for _, stmt := range result.DBSchema.SQL(dialect) {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "prisma",
			Short: "Print the equivalent Prisma schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				result, _, err := buildSchema(cmd.Context(), listsFile)
				if err != nil {
					return err
				}
				out := result.DBSchema.Prisma(schemaProvider)
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			},
		},
	)
	return cmd
}
