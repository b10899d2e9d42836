package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/approx"
	"github.com/chazu/stepview/pkg/loader"
)

var approxCmd = &cobra.Command{
	Use:   "approx <step_file>",
	Short: "Print the primitive shape standing in for a STEP file",
	Long: `Reads the CARTESIAN_POINT records of a STEP file and prints the shape
descriptor the viewer would display, as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprox,
}

func init() {
	rootCmd.AddCommand(approxCmd)
}

func runApprox(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	d := approx.New(cfg.Approx).Approximate(string(data))
	if d == nil {
		return fmt.Errorf("%s: %w", args[0], loader.ErrEmptyResult)
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
