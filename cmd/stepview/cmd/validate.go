package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/step"
)

var validateCmd = &cobra.Command{
	Use:   "validate <step_file>...",
	Short: "Check that files look like STEP files",
	Long: `Checks each file for the ISO-10303-21 marker, at least one entity line and
an ENDSEC. Exits non-zero when any file fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, name := range args {
		data, err := os.ReadFile(name)
		switch {
		case err != nil:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, err)
			failed++
		case step.IsValidStepFile(string(data)):
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not a STEP file\n", name)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(args))
	}
	return nil
}
