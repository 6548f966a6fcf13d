package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/extract"
	"github.com/sells-group/termsheet-cli/internal/selector"
)

// formatInvalid is printed for documents that fail to parse.
const formatInvalid = "invalid"

var detectCmd = &cobra.Command{
	Use:   "detect [paths...]",
	Short: "Print the detected document family of each input",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("detect"); err != nil {
			return err
		}

		docs, err := newCollector(cfg).Collect(cmd.Context(), args)
		if err != nil {
			return eris.Wrap(err, "collect documents")
		}

		out := cmd.OutOrStdout()
		for _, d := range docs {
			format := formatInvalid
			if parsed, err := selector.ParseBytes(d.Data); err != nil {
				zap.L().Warn("detect: document failed to parse", zap.String("file", d.Name), zap.Error(err))
			} else {
				format = string(extract.Detect(parsed))
			}
			fmt.Fprintf(out, "%s\t%s\n", d.Name, format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
