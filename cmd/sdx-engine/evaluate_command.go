package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"speech-data-explorer/backend/internal/coreengine/evaluationengine"
	"speech-data-explorer/backend/internal/coreengine/metricscalculator"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/textnorm"
)

type evaluateOptions struct {
	input           string
	compare         bool
	normalize       string
	charGranularity string
	workers         int
	jsonOutput      bool
}

func newEvaluateCommand() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a JSON Lines dataset of utterances",
		Long: `Each input line is an utterance object: {"key", "reference", "hypothesis"},
or with --compare {"key", "reference", "hypothesis_a", "hypothesis_b"}.
Use "-" to read standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.input == "" {
				return errors.New("--input is required")
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

			var r io.Reader = cmd.InOrStdin()
			if opts.input != "-" {
				f, err := os.Open(opts.input)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			engine := evaluationengine.New(evaluationengine.Options{
				Workers:         opts.workers,
				Normalize:       normalize,
				CharGranularity: g,
			})

			if opts.compare {
				utterances, err := readLines[evaluationengine.ComparisonUtterance](r)
				if err != nil {
					return err
				}
				report, err := engine.CompareDataset(cmd.Context(), utterances)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd, report)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderComparisonReport(report))
				return nil
			}

			utterances, err := readLines[evaluationengine.Utterance](r)
			if err != nil {
				return err
			}
			report, err := engine.EvaluateDataset(cmd.Context(), utterances)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd, report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDatasetReport(report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "JSON Lines file of utterances, or - for stdin")
	cmd.Flags().BoolVar(&opts.compare, "compare", false, "Input holds two hypotheses per utterance")
	cmd.Flags().StringVar(&opts.normalize, "normalize", textnorm.None, "Normalization policy (none, lower, standard)")
	cmd.Flags().StringVar(&opts.charGranularity, "char-granularity", "char", "Character unit (char or grapheme)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel workers (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Emit the full JSON report")
	return cmd
}

func readLines[T any](r io.Reader) ([]T, error) {
	var out []T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}

var datasetHeaders = []string{"Unit", "Rate", "Sub", "Del", "Ins", "Ref", "Utterances", "SER"}

var datasetAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

func datasetRow(label string, m metricscalculator.DatasetMetrics) []string {
	return []string{
		label,
		m.ErrorRate.Percent(),
		strconv.Itoa(m.Substitutions),
		strconv.Itoa(m.Deletions),
		strconv.Itoa(m.Insertions),
		strconv.Itoa(m.ReferenceLength),
		strconv.Itoa(m.Utterances),
		m.SentenceErrorRate.Percent(),
	}
}

func renderDatasetReport(report *evaluationengine.DatasetReport) string {
	rows := [][]string{
		datasetRow("word", report.Word),
		datasetRow(report.Char.Granularity.String(), report.Char),
	}
	out := renderTable(datasetHeaders, rows, datasetAligns)
	return out + fmt.Sprintf("\nscored: %d  failed: %d", report.Scored, report.Failed)
}

func renderComparisonReport(report *evaluationengine.ComparisonReport) string {
	s := report.Summary
	rows := [][]string{
		datasetRow("A word", s.A.Word),
		datasetRow("A "+s.A.Char.Granularity.String(), s.A.Char),
		datasetRow("B word", s.B.Word),
		datasetRow("B "+s.B.Char.Granularity.String(), s.B.Char),
	}
	out := renderTable(datasetHeaders, rows, datasetAligns)
	return out + fmt.Sprintf("\na better: %d  b better: %d  ties: %d  WER delta (A-B): %s  failed: %d",
		s.ABetter, s.BBetter, s.Ties, s.WERDelta.Percent(), report.Failed)
}
