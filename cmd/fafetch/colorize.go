package main

import (
	"fmt"
	"os"

	"github.com/dgnsrekt/fa_fetcher/internal/svgcolor"
	"github.com/spf13/cobra"
)

var (
	colorizeColor string
	colorizeWrite bool
)

var colorizeCmd = &cobra.Command{
	Use:   "colorize [flags] <file.svg>",
	Short: "Recolor a local SVG file",
	Long:  "Replace hex and currentColor fills and add a fill to every path without one. Prints the result unless --write is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if colorizeColor == "" {
			return fmt.Errorf("--color is required")
		}
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out := svgcolor.Apply(string(data), colorizeColor)
		if colorizeWrite {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			return os.WriteFile(path, []byte(out), info.Mode().Perm())
		}
		_, err = fmt.Fprint(os.Stdout, out)
		return err
	},
}

func init() {
	colorizeCmd.Flags().StringVarP(&colorizeColor, "color", "c", "", "fill color, e.g. #ff0000")
	colorizeCmd.Flags().BoolVarP(&colorizeWrite, "write", "w", false, "rewrite the file in place")
}
