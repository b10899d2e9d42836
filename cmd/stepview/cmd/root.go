package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/config"
	"github.com/chazu/stepview/pkg/logger"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stepview",
	Short: "stepview - approximate and view STEP models",
	Long: `stepview stands a primitive shape in for a STEP model: the bounding box of
its CARTESIAN_POINT records is classified as a cube, cylinder, flat box or
generic box, tessellated and framed by the camera.

Examples:
  stepview approx part.step           # Print the substitute shape as JSON
  stepview info part.step             # Show header and entity statistics
  stepview view part.step --view iso  # Print the fitted camera for a view
  stepview chat "make a 10mm cube"    # Ask the CAD chat backend
  stepview serve                      # Run the HTTP and websocket viewer API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		opts := cfg.LoggerOptions()
		if verbose {
			opts.Level = "debug"
		}
		logger.Init(opts)
		if opts.File == "" {
			// stdout carries command output.
			logger.Log.SetOutput(os.Stderr)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
