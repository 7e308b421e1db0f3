package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youruser/tokenizer/internal/config"
	imagepkg "github.com/youruser/tokenizer/internal/image"
	"github.com/youruser/tokenizer/internal/util"
)

func composeCmd() *cobra.Command {
	var (
		size       int
		out        string
		frame      string
		background string
		circle     bool
	)
	cmd := &cobra.Command{
		Use:   "compose [flags] IMAGE...",
		Short: "Stack images bottom to top and write a PNG",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bg, err := config.Config{Background: background}.BackgroundColor()
			if err != nil {
				return err
			}
			c, err := imagepkg.NewComposite(size, imagepkg.WithBackground(bg))
			if err != nil {
				return err
			}
			mask := imagepkg.MaskNone
			if circle {
				mask = imagepkg.MaskCircle
			}
			for _, arg := range args {
				if err := addLayer(cmd, c, arg, mask); err != nil {
					return err
				}
			}
			if frame != "" {
				if err := addLayer(cmd, c, frame, imagepkg.MaskCircle); err != nil {
					return err
				}
			}
			data, err := c.Export()
			if err != nil {
				return err
			}
			if err := util.WriteFileAtomic(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d layers, %dpx)\n", out, c.Len(), c.Size())
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 400, "canvas size in pixels")
	cmd.Flags().StringVarP(&out, "out", "o", "token.png", "output PNG file")
	cmd.Flags().StringVar(&frame, "frame", "", "frame drawn on top with a circular mask")
	cmd.Flags().StringVar(&background, "background", "", "background color (hex), empty for transparent")
	cmd.Flags().BoolVar(&circle, "circle", false, "apply the circular mask to every image")
	return cmd
}

func addLayer(cmd *cobra.Command, c *imagepkg.Composite, arg string, mask imagepkg.MaskKind) error {
	src, err := sourceFor(arg)
	if err != nil {
		return err
	}
	b, err := loader.Load(cmd.Context(), src)
	if err != nil {
		return err
	}
	return c.AddLayer(b, mask)
}
