package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate [spec...]",
	Short: "Validate spec files without sending requests",
	Long: `Load and build spec files, reporting structural errors such as missing
mandatory keys, unknown keys and invalid values.

Examples:
  apiscan validate
  apiscan validate api.yaml other.yaml`,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{DefaultSpecFile}
	}

	hasErrors := false
	for _, file := range args {
		root, err := runner.LoadTree(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d requests)\n", file, root.CountRequests())
	}

	if hasErrors {
		return exitWith(ExitSpecError, fmt.Errorf("validation failed"))
	}
	return nil
}
