package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	goversion "go.hein.dev/go-version"
)

func addVersion(topLevel *cobra.Command, info BuildInfo) {
	shortened := false
	output := "json"
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the canopy version.",
		Example: `
canopy version -s
`,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Print(goversion.FuncWithOutput(shortened, info.Version, info.Commit, info.Date, output))
		},
	}
	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")
	topLevel.AddCommand(cmd)
}
