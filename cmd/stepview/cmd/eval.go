package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/engine"
	"github.com/chazu/stepview/pkg/kernel/sdfx"
	"github.com/chazu/stepview/pkg/tessellate"
)

var evalMesh bool

var evalCmd = &cobra.Command{
	Use:   "eval <script>",
	Short: "Evaluate a shape script",
	Long: `Evaluates a zygomys script using box, cylinder, sphere, vec3, translate and
show, and prints the shapes it shows.

Example script:
  (show "plate" (box 100 100 5))
  (show "post" (translate (cylinder :radius 5 :height 40) (vec3 0 0 22.5)))`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().BoolVar(&evalMesh, "mesh", false, "tessellate the shapes and print mesh sizes")
}

func runEval(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	prog, evalErrs, err := engine.NewEngine().Evaluate(string(src))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(w, "%s: %s\n", args[0], e.Error())
		}
		return fmt.Errorf("%d script errors", len(evalErrs))
	}
	if len(prog.Parts) == 0 {
		fmt.Fprintln(w, "Nothing shown")
		return nil
	}
	for _, p := range prog.Parts {
		fmt.Fprintf(w, "%-16s %s\n", p.Name, p.Shape)
	}
	if !evalMesh {
		return nil
	}

	models, err := tessellate.TessellateAll(prog.Parts, sdfx.New(), cfg.TessellateOptions())
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, m := range models {
		fmt.Fprintf(w, "%-16s %s triangles, %s edge segments\n", m.Name,
			humanize.Comma(int64(m.Mesh.TriangleCount())), humanize.Comma(int64(len(m.Edges)/6)))
	}
	return nil
}
