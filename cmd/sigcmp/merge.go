package main

import (
	"github.com/spf13/cobra"

	"github.com/dreamware/sigcmp/internal/shard"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Sort-merge shard files into a paged match file",
	Long: `Sort-merge shard files into a paged match file

Shards are sorted by protein accession and k-way merged. The page index is
written next to the match file with an ".idx" suffix. Shards are deleted
once the merge succeeded. A protein found in two shards fails the merge.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shardDir, _ := cmd.Flags().GetString("shard-dir")
		out, _ := cmd.Flags().GetString("matches")
		keep, _ := cmd.Flags().GetBool("keep-shards")
		if cmd.Flags().Changed("page-size") {
			cfg.PageSize, _ = cmd.Flags().GetInt("page-size")
		}

		codec, release, err := newCodec()
		if err != nil {
			return err
		}
		defer release()

		shards, err := shard.ListShards(shardDir)
		if err != nil {
			return err
		}
		_, err = shard.Merge(cmd.Context(), shards, out, codec, shard.MergeOptions{
			PageSize:   cfg.PageSize,
			Workers:    cfg.Workers,
			KeepShards: keep,
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringP("shard-dir", "s", "shards", `directory holding the shard files`)
	mergeCmd.Flags().StringP("matches", "m", "matches", `match file to write`)
	mergeCmd.Flags().Int("page-size", 0, `records per index page (default: page_size from the configuration)`)
	mergeCmd.Flags().Bool("keep-shards", false, `keep shard files after merging`)
}
