package commands

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	imagepkg "github.com/youruser/tokenizer/internal/image"
	"github.com/youruser/tokenizer/internal/util"
)

var (
	timeout time.Duration
	loader  *imagepkg.Loader
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tokenizer",
		Short:        "Compose portrait and token images",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loader = imagepkg.NewLoader(util.NewFetcher(timeout, os.DirFS("/"), ""))
			return nil
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 12*time.Second, "timeout for image downloads")

	root.AddCommand(composeCmd(), resolveCmd(), slugCmd())
	return root
}

// sourceFor turns a CLI argument into a loader source. Local paths are made
// absolute so they resolve against the filesystem root.
func sourceFor(arg string) (imagepkg.Source, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return imagepkg.URLSource(arg), nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return imagepkg.Source{}, err
	}
	return imagepkg.URLSource(filepath.ToSlash(abs)), nil
}
