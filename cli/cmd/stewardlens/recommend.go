package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

type recommendFlags struct {
	format string
	limit  int
}

func newRecommendCmd() *cobra.Command {
	f := &recommendFlags{}

	cmd := &cobra.Command{
		Use:   "recommend <input-file>",
		Short: "List prioritized recommendations for a metrics file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", formatText, "Output format: text or json")
	cmd.Flags().IntVar(&f.limit, "limit", finhealth.MaxRecommendations, "Maximum number of recommendations to print")
	return cmd
}

func runRecommend(cmd *cobra.Command, path string, f *recommendFlags) error {
	if err := checkFormat(f.format); err != nil {
		return err
	}
	if f.limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", f.limit)
	}
	in, err := loadInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	recs := finhealth.Top(finhealth.GenerateRecommendations(in), f.limit)

	if f.format == formatJSON {
		if recs == nil {
			recs = []finhealth.Recommendation{}
		}
		return writeJSON(cmd.OutOrStdout(), recs)
	}
	writeRecommendText(cmd.OutOrStdout(), recs)
	return nil
}

func writeRecommendText(w io.Writer, recs []finhealth.Recommendation) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recommendations: every metric sits in its neutral band.")
		return
	}
	for i, r := range recs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d. [%s] %s (%s)\n", i+1, strings.ToUpper(string(r.Priority)), r.Title, r.Type)
		fmt.Fprintf(w, "   %s\n", r.Description)
	}
}
