package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youruser/tokenizer/internal/naming"
	"github.com/youruser/tokenizer/internal/storage"
)

func resolveCmd() *cobra.Command {
	var (
		root    string
		dir     string
		slug    string
		name    string
		pattern string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the next free wildcard token filename",
		RunE: func(cmd *cobra.Command, args []string) error {
			if slug == "" {
				if name == "" {
					return fmt.Errorf("one of --slug or --name is required")
				}
				slug = naming.Slug(name)
			}
			store, err := storage.NewFileStore(root, "")
			if err != nil {
				return err
			}
			template := naming.BuildTemplate(dir, slug, pattern)
			files, err := store.ListFiles(cmd.Context(), template)
			if err != nil {
				return err
			}
			target, err := naming.Resolve(template, naming.FileSet(files...))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "file store root")
	cmd.Flags().StringVar(&dir, "dir", "tokenizer", "directory below the root")
	cmd.Flags().StringVar(&slug, "slug", "", "actor slug")
	cmd.Flags().StringVar(&name, "name", "", "actor name, slugged when --slug is empty")
	cmd.Flags().StringVar(&pattern, "pattern", "", "existing wildcard pattern to reuse")
	return cmd
}
