package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Work with list definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the list definitions build a schema",
		Example: `  cmsctl lists validate --lists lists.yaml`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, fingerprint, err := buildSchema(cmd.Context(), listsFile)
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "List definitions are valid. Found %d lists (fingerprint %s):\n", len(result.Lists.Keys), fingerprint[:12])
			for _, key := range result.Lists.Keys {
				list := result.Lists.ByKey[key]
				fmt.Fprintf(out, "  - %s (%d fields)\n", key, len(list.Fields))
			}
			return nil
		},
	})
	return cmd
}
