package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/listconfig"
	"cms-graphql/internal/naming"
	"cms-graphql/internal/schemarefresh"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/memstore"
)

var (
	listsFile string
	quiet     bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmsctl",
		Short: "Inspect cms-graphql list definitions",
		Long: `cmsctl - inspect cms-graphql list definitions

cmsctl loads a list definitions file the way the server does and prints the
GraphQL, SQL or Prisma schema generated from it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&listsFile, "lists", "l", "lists.yaml", "path to the list definitions file")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	cmd.AddCommand(newSchemaCmd(), newListsCmd())
	return cmd
}

// buildSchema runs the server's schema pipeline over an in-memory store.
func buildSchema(ctx context.Context, path string) (*schemarefresh.BuildSchemaResult, string, error) {
	cfg, fingerprint, err := listconfig.Load(path)
	if err != nil {
		return nil, "", err
	}
	names := naming.DefaultConfig()
	result, err := schemarefresh.BuildSchema(ctx, schemarefresh.BuildSchemaConfig{
		Lists: cfg,
		OpenStore: func(_ context.Context, s *dbschema.Schema) (store.Client, error) {
			return memstore.New(s), nil
		},
		Naming: &names,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return result, fingerprint, nil
}
