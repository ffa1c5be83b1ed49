package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/dreamware/sigcmp/internal/coordinator"
	"github.com/dreamware/sigcmp/internal/overlap"
	"github.com/dreamware/sigcmp/internal/relation"
	"github.com/dreamware/sigcmp/internal/storage"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Compute signature, comparison and prediction relations",
	Long: `Compute signature, comparison and prediction relations

Workers claim page ranges of the match file and compute per-signature
counters and per-pair collocations and overlaps. Output files, written to
the output directory:
  signature.tsv   one row per signature
  comparison.tsv  one row per compared pair and direction
  prediction.tsv  pairs meeting the minimum collocation
  similarity.tsv  collocation, protein and residue overlap similarity and
                  containment of every compared pair, in both directions
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		path, _ := flags.GetString("matches")
		outDir, _ := flags.GetString("out-dir")
		infoFile, _ := flags.GetString("signature-info")
		showProgress, _ := flags.GetBool("progress")
		interval, _ := flags.GetDuration("log-interval")
		if flags.Changed("pages-per-task") {
			cfg.PagesPerTask, _ = flags.GetInt("pages-per-task")
		}
		if flags.Changed("min-overlap") {
			cfg.MinOverlap, _ = flags.GetFloat64("min-overlap")
		}
		if flags.Changed("min-collocation") {
			cfg.MinCollocation, _ = flags.GetFloat64("min-collocation")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		infos := map[string]relation.SignatureInfo{}
		if infoFile != "" {
			fh, err := xopen.Ropen(infoFile)
			if err != nil {
				return err
			}
			infos, err = relation.ReadSignatureInfo(fh)
			fh.Close()
			if err != nil {
				return err
			}
		}

		codec, release, err := newCodec()
		if err != nil {
			return err
		}
		defer release()

		res, err := aggregate(cmd.Context(), path, codec, showProgress, interval)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		return writeRelations(outDir, res, infos)
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringP("matches", "m", "matches", `match file written by "merge"`)
	aggregateCmd.Flags().StringP("out-dir", "o", "results", `directory receiving the relation files`)
	aggregateCmd.Flags().String("signature-info", "", `tab-separated signature descriptions (accession, database_id, name, ...)`)
	aggregateCmd.Flags().Int("pages-per-task", 0, `index pages claimed by a worker at a time`)
	aggregateCmd.Flags().Float64("min-overlap", 0, `shared fraction of the smaller signature for an overlapping protein`)
	aggregateCmd.Flags().Float64("min-collocation", 0, `collocated fraction of the smaller signature for a prediction`)
	aggregateCmd.Flags().Duration("log-interval", time.Minute, `interval between progress log lines`)
}

func aggregate(ctx context.Context, path string, codec storage.Codec, showProgress bool, interval time.Duration) (*overlap.Results, error) {
	idx, err := storage.ReadIndex(storage.IndexPath(path))
	if err != nil {
		return nil, err
	}
	if err := idx.Check(); err != nil {
		return nil, err
	}
	tasks := coordinator.Tasks(idx, cfg.PagesPerTask)

	driver := coordinator.NewDriver(path, codec, coordinator.DriverConfig{
		Workers:    cfg.Workers,
		Calculator: overlap.NewCalculator(cfg.MinOverlap),
	})

	progress := coordinator.NewProgress(len(tasks), interval)
	go progress.Start(ctx)
	defer progress.Stop()

	var (
		pbs *mpb.Progress
		bar *mpb.Bar
	)
	if showProgress && len(tasks) > 0 {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(tasks)),
			mpb.PrependDecorators(
				decor.Name("processed tasks: ", decor.WC{W: len("processed tasks: "), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}
	driver.SetOnTaskDone(func(r coordinator.TaskReport) {
		progress.TaskDone(r)
		if bar != nil {
			bar.EwmaIncrBy(1, r.Elapsed)
		}
	})

	res, err := driver.Run(ctx, tasks)
	if pbs != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		pbs.Wait()
	}
	return res, err
}

func writeRelations(dir string, res *overlap.Results, infos map[string]relation.SignatureInfo) error {
	outputs := []struct {
		name    string
		columns []string
		write   func(*relation.Writer) error
	}{
		{"signature.tsv", relation.SignatureColumns, func(w *relation.Writer) error {
			return relation.WriteSignatures(w, res, infos)
		}},
		{"comparison.tsv", relation.ComparisonColumns, func(w *relation.Writer) error {
			return relation.WriteComparisons(w, res)
		}},
		{"prediction.tsv", relation.PredictionColumns, func(w *relation.Writer) error {
			return relation.WritePredictions(w, overlap.Predict(res, cfg.MinCollocation))
		}},
		{"similarity.tsv", relation.SimilarityColumns, func(w *relation.Writer) error {
			return relation.WriteSimilarities(w, overlap.Similarities(res))
		}},
	}
	for _, out := range outputs {
		w, err := relation.Create(filepath.Join(dir, out.name), out.columns)
		if err != nil {
			return err
		}
		if err := out.write(w); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
