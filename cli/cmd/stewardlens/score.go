package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

type scoreFlags struct {
	format string
}

// scoreOutput is the --format json shape of the score command.
type scoreOutput struct {
	Score     int                   `json:"score"`
	Label     finhealth.Label       `json:"label"`
	SubScores finhealth.SubScores   `json:"sub_scores"`
	Breakdown []finhealth.Dimension `json:"breakdown"`
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score <input-file>",
		Short: "Compute the giving health score for a metrics file",
		Long: "Reads a YAML or JSON file with givingTrend, donorRetention, recurringGiving\n" +
			"and newDonorGrowth sections and prints the 0-100 health score, its label\n" +
			"and how each dimension contributes. Use - to read stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", formatText, "Output format: text or json")
	return cmd
}

func runScore(cmd *cobra.Command, path string, f *scoreFlags) error {
	if err := checkFormat(f.format); err != nil {
		return err
	}
	in, err := loadInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	res := finhealth.ComputeHealthScore(in)
	out := scoreOutput{
		Score:     res.Score,
		Label:     res.Label,
		SubScores: res.SubScores,
		Breakdown: finhealth.Breakdown(res.SubScores),
	}

	if f.format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return writeScoreText(cmd.OutOrStdout(), out)
}

func writeScoreText(w io.Writer, out scoreOutput) error {
	fmt.Fprintf(w, "Health score: %d/100 (%s)\n\n", out.Score, out.Label)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Dimension\tSub-score\tWeight\tPoints\t")
	for _, d := range out.Breakdown {
		fmt.Fprintf(tw, "%s\t%.1f\t%.0f%%\t%.1f\t\n", d.Title, d.SubScore, d.Weight*100, d.Contribution)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
