package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dreamware/sigcmp/internal/config"
	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/storage"
)

// options shared by every command, filled in by the root command
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "sigcmp",
	Short: "Out-of-core signature match aggregation",
	Long: `Out-of-core signature match aggregation

Builds a sorted, paged match file from protein-to-signature rows and
computes per-signature statistics, pairwise collocations and overlaps,
representative domains and domain architecture fingerprints.

Typical run:
  sigcmp export -o shards rows-*.tsv.gz
  sigcmp merge -s shards -m matches
  sigcmp aggregate -m matches -o results
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("tmp-dir") {
			cfg.TmpDir, _ = flags.GetString("tmp-dir")
		}
		if flags.Changed("workers") {
			cfg.Workers, _ = flags.GetInt("workers")
		}
		if flags.Changed("compress") {
			cfg.Compress, _ = flags.GetBool("compress")
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", `YAML configuration file`)
	rootCmd.PersistentFlags().String("tmp-dir", "", `directory for temporary files (default: $SIGCMP_TMPDIR or the system default)`)
	rootCmd.PersistentFlags().IntP("workers", "j", 0, `number of workers (default: $SIGCMP_WORKERS or the number of CPUs)`)
	rootCmd.PersistentFlags().Bool("compress", false, `zstd-compress shard and match records (must match between commands)`)
	rootCmd.PersistentFlags().Bool("progress", false, `show a progress bar on stderr`)
}

func main() {
	log.SetFlags(log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("error: %v", err)
	}
}

// newCodec returns the record codec selected by the configuration and a
// function releasing it.
func newCodec() (storage.Codec, func(), error) {
	codec, err := storage.NewCodec(cfg.Compress)
	if err != nil {
		return nil, nil, err
	}
	release := func() {}
	if zc, ok := codec.(*storage.ZstdCodec); ok {
		release = zc.Close
	}
	return codec, release, nil
}

// eachRecord calls fn with every record of the match file in order.
func eachRecord(ctx context.Context, path string, codec storage.Codec, fn func(*match.Record) error) error {
	r, err := storage.Open(path, codec)
	if err != nil {
		return err
	}
	defer r.Close()

	var prev string
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var rec match.Record
		err := r.Next(&rec)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		if n > 0 {
			if err := match.CheckOrder(prev, rec.Protein); err != nil {
				return err
			}
		}
		prev = rec.Protein
		if err := fn(&rec); err != nil {
			return err
		}
	}
}
