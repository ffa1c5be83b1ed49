package main

import (
	"fmt"
	"os"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"github.com/dreamware/sigcmp/internal/shard"
)

var exportCmd = &cobra.Command{
	Use:   "export [flags] rows.tsv[.gz] ...",
	Short: "Group upstream match rows into per-protein shard files",
	Long: `Group upstream match rows into per-protein shard files

Every input file is read by its own worker. Input columns (tab-separated):
  protein  S|T  Y|N  taxon_left  signature  database  start  end  [fragments]

S marks a reviewed protein, Y a fragment sequence. Without a fragment
string the match is one continuous fragment from start to end.
The rows of a protein must be contiguous and in a single input file.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out-dir")
		if cmd.Flags().Changed("shard-records") {
			cfg.ShardRecords, _ = cmd.Flags().GetInt("shard-records")
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		codec, release, err := newCodec()
		if err != nil {
			return err
		}
		defer release()

		sources := make([]shard.RowSource, 0, len(args))
		for _, file := range args {
			fh, err := xopen.Ropen(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer fh.Close()
			sources = append(sources, shard.NewTSVSource(fh))
		}

		exp := shard.NewExporter(outDir, codec, cfg.ShardRecords)
		_, err = exp.Export(cmd.Context(), sources)
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("out-dir", "o", "shards", `directory receiving the shard files`)
	exportCmd.Flags().Int("shard-records", 0, `proteins per shard (default: shard_records from the configuration)`)
}
