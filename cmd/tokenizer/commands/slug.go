package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youruser/tokenizer/internal/naming"
)

func slugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slug NAME...",
		Short: "Print the filename slug of each name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				fmt.Fprintln(cmd.OutOrStdout(), naming.Slug(name))
			}
			return nil
		},
	}
}
