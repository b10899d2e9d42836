package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/loader"
	"github.com/chazu/stepview/pkg/view"
	"github.com/chazu/stepview/pkg/viewer"
)

var (
	viewName string
	viewZoom int
)

var viewCmd = &cobra.Command{
	Use:   "view <model_file>",
	Short: "Print the camera for a model",
	Long: `Loads a STEP or STL file, fits the camera to it, applies a named view and
optional zoom steps and prints the resulting view state as JSON.

Zoom steps are positive to zoom in and negative to zoom out.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&viewName, "view", "default", "view: default, top, front, side or iso")
	viewCmd.Flags().IntVar(&viewZoom, "zoom", 0, "zoom steps")
}

func runView(cmd *cobra.Command, args []string) error {
	v, err := view.ParseView(viewName)
	if err != nil {
		return err
	}
	svc, err := viewer.FromConfig(cfg)
	if err != nil {
		return err
	}
	if _, err := svc.Load(cmd.Context(), loader.Request{Path: args[0]}); err != nil {
		return err
	}
	svc.SetView(v)
	for i := 0; i < viewZoom; i++ {
		svc.ZoomIn()
	}
	for i := 0; i > viewZoom; i-- {
		svc.ZoomOut()
	}
	out, err := json.MarshalIndent(svc.State(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
