package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"speech-data-explorer/backend/internal/coreengine/comparison"
	"speech-data-explorer/backend/internal/coreengine/diffrenderer"
	"speech-data-explorer/backend/internal/coreengine/metricscalculator"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/textnorm"
)

type scoreOptions struct {
	reference       string
	hypothesis      string
	hypothesisB     string
	normalize       string
	charGranularity string
	jsonOutput      bool
}

func newScoreCommand() *cobra.Command {
	var opts scoreOptions

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one hypothesis, or compare two, against a reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("hypothesis") {
				return errors.New("--hypothesis is required")
			}
			normalize, err := textnorm.Lookup(opts.normalize)
			if err != nil {
				return err
			}
			g, err := tokenizer.ParseGranularity(opts.charGranularity)
			if err != nil {
				return err
			}
			if g == tokenizer.Word {
				return errors.New("--char-granularity must be char or grapheme")
			}
			s := scorer.New(scorer.WithCharGranularity(g))
			reference := normalize(opts.reference)

			if cmd.Flags().Changed("hypothesis-b") {
				record := comparison.New(s).Compare("", reference, normalize(opts.hypothesis), normalize(opts.hypothesisB))
				if opts.jsonOutput {
					return writeJSON(cmd, record)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderComparison(record))
				return nil
			}

			card := s.Score(reference, normalize(opts.hypothesis))
			if opts.jsonOutput {
				return writeJSON(cmd, card)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderScorecard(card))
			fmt.Fprintln(cmd.OutOrStdout(), diffrenderer.Format(card.Diff, " "))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.reference, "reference", "", "Reference transcript")
	cmd.Flags().StringVar(&opts.hypothesis, "hypothesis", "", "Hypothesis transcript (model A when comparing)")
	cmd.Flags().StringVar(&opts.hypothesisB, "hypothesis-b", "", "Second hypothesis; switches to comparison mode")
	cmd.Flags().StringVar(&opts.normalize, "normalize", textnorm.None, "Normalization policy (none, lower, standard)")
	cmd.Flags().StringVar(&opts.charGranularity, "char-granularity", "char", "Character unit (char or grapheme)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

var metricHeaders = []string{"Unit", "Rate", "Match", "Sub", "Del", "Ins", "Ref", "Hyp", "MatchRate", "Accuracy"}

var metricAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

func metricsRow(label string, m metricscalculator.UtteranceMetrics) []string {
	return []string{
		label,
		m.ErrorRate.Percent(),
		strconv.Itoa(m.Matches),
		strconv.Itoa(m.Substitutions),
		strconv.Itoa(m.Deletions),
		strconv.Itoa(m.Insertions),
		strconv.Itoa(m.ReferenceLength),
		strconv.Itoa(m.HypothesisLength),
		m.MatchRate.Percent(),
		m.Accuracy.Percent(),
	}
}

func renderScorecard(card scorer.Scorecard) string {
	rows := [][]string{
		metricsRow("word", card.Word),
		metricsRow(card.Char.Granularity.String(), card.Char),
	}
	return renderTable(metricHeaders, rows, metricAligns)
}

func renderComparison(record comparison.Record) string {
	rows := [][]string{
		metricsRow("A word", record.A.Word),
		metricsRow("A "+record.A.Char.Granularity.String(), record.A.Char),
		metricsRow("B word", record.B.Word),
		metricsRow("B "+record.B.Char.Granularity.String(), record.B.Char),
	}
	return renderTable(metricHeaders, rows, metricAligns) + "\nresult: " + string(record.Classification)
}
