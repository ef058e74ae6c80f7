package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/endorses/osmon/internal/pkg/output"
	"github.com/endorses/osmon/internal/pkg/version"
)

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return output.WriteJSON(cmd.OutOrStdout(), versionInfo{
				Version:   version.Version,
				GitCommit: version.GitCommit,
				BuildDate: version.BuildDate,
			}, output.IsTTY())
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "osmon", version.GetFullVersion())
		return err
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Output in JSON format")
}
