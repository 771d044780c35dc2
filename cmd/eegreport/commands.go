package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	eegreport "github.com/emotion-eeg/eeg-report"
	"github.com/emotion-eeg/eeg-report/augment"
	"github.com/emotion-eeg/eeg-report/llmexport"
	"github.com/emotion-eeg/eeg-report/pipeline"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func (a *app) runCmd() *cobra.Command {
	var (
		outDir, format, pattern, encoding, labelsPath, storePath string
		overwrite, strict                                        bool
		workers, count                                           int
		spread                                                   float64
		seed                                                     uint64
	)
	cmd := &cobra.Command{
		Use:   "run [files or directories...]",
		Short: "Run the full pipeline over a batch of logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			pick := func(name, flagVal, cfgVal string) string {
				if flags.Changed(name) {
					return flagVal
				}
				return cfgVal
			}

			inputs := args
			if len(inputs) == 0 {
				inputs = cfg.Input.Paths
			}
			if len(inputs) == 0 {
				return usagef("no inputs given (pass paths or set input.paths in the config)")
			}

			opts := pipeline.Options{
				Inputs:        inputs,
				Pattern:       pick("pattern", pattern, cfg.Input.Pattern),
				OutDir:        pick("out", outDir, cfg.Output.Dir),
				Format:        pick("format", format, cfg.Output.Format),
				Encoding:      pick("encoding", encoding, cfg.Input.Encoding),
				Overwrite:     cfg.Output.Overwrite,
				Strict:        cfg.Parse.Strict,
				Workers:       cfg.Parse.Workers,
				Augment:       cfg.Augment.Count,
				AugmentSpread: cfg.Augment.Spread,
				Seed:          cfg.Augment.Seed,
				StorePath:     pick("store", storePath, cfg.Store.Path),
				Logger:        a.logger,
			}
			if flags.Changed("overwrite") {
				opts.Overwrite = overwrite
			}
			if flags.Changed("strict") {
				opts.Strict = strict
			}
			if flags.Changed("workers") {
				opts.Workers = workers
			}
			if flags.Changed("augment") {
				opts.Augment = count
			}
			if flags.Changed("spread") {
				if spread <= 0 || spread > 1 {
					return usagef("--spread must be in (0,1], got %g", spread)
				}
				opts.AugmentSpread = spread
			}
			if flags.Changed("seed") {
				opts.Seed = seed
			}
			if lp := pick("labels", labelsPath, cfg.Output.Labels); lp != "" {
				labels, err := llmexport.LoadLabels(lp)
				if err != nil {
					return err
				}
				opts.Labels = labels
			}

			res, err := pipeline.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "eegreport run complete (%s)\n", res.RunID)
			fmt.Fprintf(w, "Output dir:        %s\n", res.OutputDir)
			fmt.Fprintf(w, "participants:      %d (+%d augmented)\n", res.ParticipantCount, res.AugmentedCount)
			fmt.Fprintf(w, "report:            %s\n", res.ReportPath)
			fmt.Fprintf(w, "indices:           %s\n", res.IndicesPath)
			fmt.Fprintf(w, "keywords:          %s\n", res.KeywordsPath)
			fmt.Fprintf(w, "notes:             %s\n", res.NotesPath)
			fmt.Fprintf(w, "prompts:           %s\n", res.PromptsPath)
			fmt.Fprintf(w, "manifest:          %s\n", res.ManifestPath)
			if res.StorePath != "" {
				fmt.Fprintf(w, "archive:           %s\n", res.StorePath)
			}
			for _, warn := range res.Warnings {
				fmt.Fprintf(w, "warning:           %s\n", warn)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&outDir, "out", "o", "", "Output directory")
	f.StringVar(&format, "format", "parquet", "Index table format: parquet|csv")
	f.StringVar(&pattern, "pattern", "RECORD*.txt", "Glob applied inside input directories")
	f.StringVar(&encoding, "encoding", "auto", "Input encoding: auto|utf-8|euc-kr")
	f.StringVar(&labelsPath, "labels", "", "CSV of participant_id,assistant reference summaries")
	f.StringVar(&storePath, "store", "", "SQLite archive path")
	f.BoolVar(&overwrite, "overwrite", false, "Allow writing into a non-empty output directory")
	f.BoolVar(&strict, "strict", false, "Fail on malformed channel values")
	f.IntVar(&workers, "workers", 4, "Parallel parse workers")
	f.IntVar(&count, "augment", 0, "Synthetic variants of the first participant")
	f.Float64Var(&spread, "spread", augment.DefaultSpread, "Maximum jitter per channel for augmentation")
	f.Uint64Var(&seed, "seed", 1, "Augmentation seed")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	var overwrite, strict bool
	var encoding string
	cmd := &cobra.Command{
		Use:   "convert <log.txt> <Report_Data.json>",
		Short: "Parse one log into a report JSON",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("encoding") {
				encoding = a.cfg.Input.Encoding
			}
			report, diag, err := pipeline.ConvertFile(args[0], args[1], pipeline.ConvertOptions{
				Encoding:  encoding,
				Strict:    strict || a.cfg.Parse.Strict,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			a.logger.Debug("converted log",
				zap.String("input", args[0]),
				zap.Strings("dropped_segments", diag.DroppedSegments))
			for _, s := range diag.MissingStages {
				a.logger.Warn("stage missing from log", zap.String("input", args[0]), zap.String("stage", s))
			}
			for _, is := range diag.Issues {
				a.logger.Warn("malformed channel value",
					zap.String("segment", is.Segment),
					zap.String("channel", is.Channel.Label()),
					zap.String("raw", is.Raw),
					zap.Float64("used", is.Used))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", args[1], strings.Join(report.IDs(), ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing output file")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on malformed channel values")
	cmd.Flags().StringVar(&encoding, "encoding", "auto", "Input encoding: auto|utf-8|euc-kr")
	return cmd
}

func (a *app) indicesCmd() *cobra.Command {
	var out, format string
	cmd := &cobra.Command{
		Use:   "indices <Report_Data.json>",
		Short: "Compute composite indices for every stage",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pipeline.LoadReport(args[0])
			if err != nil {
				return err
			}
			if out != "" {
				if err := pipeline.WriteIndices(out, report, format); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			}
			w := cmd.OutOrStdout()
			labels := eegreport.IndexLabels()
			for _, id := range report.IDs() {
				fmt.Fprintf(w, "%s\n", id)
				for _, si := range eegreport.ParticipantIndices(report[id]) {
					fmt.Fprintf(w, "  %s:", si.Stage)
					for i, v := range si.Indices.Values() {
						fmt.Fprintf(w, " %s=%.1f", labels[i], v*100)
					}
					fmt.Fprintln(w)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the table to this .parquet or .csv file")
	cmd.Flags().StringVar(&format, "format", "", "parquet|csv (default from --out extension)")
	return cmd
}

func (a *app) keywordsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keywords <Report_Data.json>",
		Short: "Tag emotion, valence, arousal and engagement keywords",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pipeline.LoadReport(args[0])
			if err != nil {
				return err
			}
			sets := eegreport.ReportKeywords(report)
			if out != "" {
				if sets, err = pipeline.WriteKeywords(out, report); err != nil {
					return err
				}
			}
			for _, ks := range sets {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ks.ParticipantID, ks)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write keywords.json to this path")
	return cmd
}

func (a *app) promptsCmd() *cobra.Command {
	var out, labelsPath string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "prompts <Report_Data.json>",
		Short: "Render prompts.jsonl and manifest.json for summarisation",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = a.cfg.Output.Dir
			}
			if labelsPath == "" {
				labelsPath = a.cfg.Output.Labels
			}
			report, err := pipeline.LoadReport(args[0])
			if err != nil {
				return err
			}
			opts := llmexport.ExportOptions{
				Overwrite:  overwrite || a.cfg.Output.Overwrite,
				SourceFile: args[0],
			}
			if labelsPath != "" {
				if opts.Labels, err = llmexport.LoadLabels(labelsPath); err != nil {
					return err
				}
			}
			res, err := llmexport.ExportReport(report, out, opts)
			if err != nil {
				return err
			}
			a.logger.Info("exported prompts",
				zap.String("dir", res.OutputDir),
				zap.Int("records", res.RecordCount),
				zap.Int("training", res.TrainingCount))
			fmt.Fprintf(cmd.OutOrStdout(), "prompts:  %s (%d records, %d with answers)\nmanifest: %s\n",
				res.PromptsPath, res.RecordCount, res.TrainingCount, res.ManifestPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory")
	cmd.Flags().StringVar(&labelsPath, "labels", "", "CSV of participant_id,assistant reference summaries")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Allow writing into a non-empty output directory")
	return cmd
}

func (a *app) augmentCmd() *cobra.Command {
	var out, base string
	var count int
	var spread float64
	var seed uint64
	cmd := &cobra.Command{
		Use:   "augment <Report_Data.json>",
		Short: "Append seeded synthetic variants of one participant",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("count") {
				count = a.cfg.Augment.Count
			}
			if !flags.Changed("spread") {
				spread = a.cfg.Augment.Spread
			}
			if !flags.Changed("seed") {
				seed = a.cfg.Augment.Seed
			}
			if count <= 0 {
				return usagef("--count must be positive")
			}
			if spread <= 0 || spread > 1 {
				return usagef("--spread must be in (0,1], got %g", spread)
			}
			if out == "" {
				out = args[0]
			}
			if base != "" && !strings.HasPrefix(base, "participant_") {
				base = sessionlog.ParticipantID(base)
			}
			added, err := pipeline.AugmentReport(args[0], out, base, augment.Options{Count: count, Spread: spread, Seed: seed})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d variants to %s\n", len(added), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output report path (default: overwrite input)")
	cmd.Flags().StringVar(&base, "base", "", "Participant to vary (default: first by id)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of variants")
	cmd.Flags().Float64Var(&spread, "spread", augment.DefaultSpread, "Maximum jitter per channel")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}

func (a *app) notesCmd() *cobra.Command {
	var participant string
	cmd := &cobra.Command{
		Use:   "notes <Report_Data.json>",
		Short: "Print readable session notes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pipeline.LoadReport(args[0])
			if err != nil {
				return err
			}
			if participant == "" {
				fmt.Fprintln(cmd.OutOrStdout(), eegreport.BuildReportNotes(report))
				return nil
			}
			id := participant
			if _, ok := report[id]; !ok {
				id = sessionlog.ParticipantID(participant)
			}
			p, ok := report[id]
			if !ok {
				return fmt.Errorf("participant %s not found", participant)
			}
			fmt.Fprintln(cmd.OutOrStdout(), eegreport.BuildNotes(id, p))
			return nil
		},
	}
	cmd.Flags().StringVarP(&participant, "participant", "p", "", "Only this participant (id or name)")
	return cmd
}
