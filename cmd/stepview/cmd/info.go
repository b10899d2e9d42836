package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/approx"
	"github.com/chazu/stepview/pkg/step"
)

var infoTop int

var infoCmd = &cobra.Command{
	Use:   "info <step_file>",
	Short: "Show STEP file information",
	Long: `Display the header of a STEP file, entity statistics, the bounding box of
its points and the substitute shape.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoTop, "top", 10, "number of entity types to list (0 for all)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	filename := args[0]
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	text := string(data)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "File: %s (%s)\n", filename, humanize.Bytes(uint64(len(data))))
	if !step.IsValidStepFile(text) {
		fmt.Fprintln(w, "Warning: does not look like a STEP file")
	}
	showHeader(w, step.ReadHeader(text))

	a := approx.New(cfg.Approx).Analyze(text)
	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "  Entities: %s\n", humanize.Comma(int64(a.Entities)))
	fmt.Fprintf(w, "  Points: %s\n", humanize.Comma(int64(a.Points)))
	fmt.Fprintf(w, "  Entity types: %d\n", len(a.Types))
	fmt.Fprintln(w)

	if len(a.Types) > 0 {
		fmt.Fprintln(w, "Entity types:")
		types := make([]string, 0, len(a.Types))
		for t := range a.Types {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			if a.Types[types[i]] != a.Types[types[j]] {
				return a.Types[types[i]] > a.Types[types[j]]
			}
			return types[i] < types[j]
		})
		if infoTop > 0 && len(types) > infoTop {
			types = types[:infoTop]
		}
		for _, t := range types {
			fmt.Fprintf(w, "  %-32s %s\n", t, humanize.Comma(int64(a.Types[t])))
		}
		fmt.Fprintln(w)
	}

	if a.Bounds != nil {
		size := a.Bounds.Size()
		fmt.Fprintln(w, "Bounds:")
		fmt.Fprintf(w, "  Min: (%g, %g, %g)\n", a.Bounds.Min.X, a.Bounds.Min.Y, a.Bounds.Min.Z)
		fmt.Fprintf(w, "  Max: (%g, %g, %g)\n", a.Bounds.Max.X, a.Bounds.Max.Y, a.Bounds.Max.Z)
		fmt.Fprintf(w, "  Size: %g x %g x %g\n", size.X, size.Y, size.Z)
		fmt.Fprintln(w)
	}
	if a.Shape != nil {
		fmt.Fprintf(w, "Shape: %s\n", a.Shape)
	} else {
		fmt.Fprintln(w, "Shape: none (no CARTESIAN_POINT found)")
	}
	return nil
}

func showHeader(w io.Writer, h step.Header) {
	fmt.Fprintln(w, "Header:")
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s: %s\n", label, value)
		}
	}
	field("Name", h.Name)
	field("Description", strings.Join(h.Description, "; "))
	field("Time stamp", h.TimeStamp)
	field("Author", strings.Join(h.Author, ", "))
	field("Organization", strings.Join(h.Organization, ", "))
	field("Preprocessor", h.PreprocessorVersion)
	field("System", h.OriginatingSystem)
	field("Schema", strings.Join(h.Schemas, ", "))
	fmt.Fprintln(w)
}
