package main

import (
	"log"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dreamware/sigcmp/internal/domain"
	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/relation"
)

var representCmd = &cobra.Command{
	Use:   "represent",
	Short: "Select representative domains of every protein",
	Long: `Select representative domains of every protein

For each protein, overlapping domain matches are clustered and the
mutually compatible subset covering the most residues is kept. Ties go to
the subset with more domains from the best ranked database; ranks come
from "source_ranks" in the configuration or from --rank.

Output columns: protein_accession, signature_accession, start, end, fragments
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("matches")
		out, _ := cmd.Flags().GetString("out-file")
		ranks, _ := cmd.Flags().GetStringSlice("rank")
		if err := parseRanks(ranks); err != nil {
			return err
		}

		codec, release, err := newCodec()
		if err != nil {
			return err
		}
		defer release()

		w, err := relation.Create(out, relation.RepresentativeColumns)
		if err != nil {
			return err
		}
		sel := cfg.DomainSelector()
		var proteins int64
		err = eachRecord(cmd.Context(), path, codec, func(rec *match.Record) error {
			proteins++
			return relation.WriteRepresentatives(w, rec.Protein, sel.Select(domain.FromRecord(rec, cfg.SourceRanks)))
		})
		if err != nil {
			w.Close()
			return err
		}
		log.Printf("selected %s domains for %s proteins", humanize.Comma(w.Rows()), humanize.Comma(proteins))
		return w.Close()
	},
}

// parseRanks adds database=rank pairs to the configured source ranks.
func parseRanks(pairs []string) error {
	for _, p := range pairs {
		db, r, ok := strings.Cut(p, "=")
		if !ok {
			return &rankError{p}
		}
		n, err := strconv.Atoi(r)
		if err != nil {
			return &rankError{p}
		}
		if cfg.SourceRanks == nil {
			cfg.SourceRanks = domain.RankTable{}
		}
		cfg.SourceRanks[db] = n
	}
	return nil
}

type rankError struct{ value string }

func (e *rankError) Error() string {
	return "invalid rank " + strconv.Quote(e.value) + ", expected database=rank"
}

var archhashCmd = &cobra.Command{
	Use:   "archhash",
	Short: "Fingerprint the domain architecture of every protein",
	Long: `Fingerprint the domain architecture of every protein

Span boundaries of all signatures are ordered by position and grouped,
starting a new group when consecutive positions are more than max_gap
residues apart. The ordered groups are hashed with the configured digest.

Output columns: protein_accession, fingerprint
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("matches")
		out, _ := cmd.Flags().GetString("out-file")
		if cmd.Flags().Changed("max-gap") {
			cfg.Hasher.MaxGap, _ = cmd.Flags().GetInt("max-gap")
		}
		if cmd.Flags().Changed("digest") {
			d, _ := cmd.Flags().GetString("digest")
			cfg.Hasher.Digest = domain.Digest(d)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		codec, release, err := newCodec()
		if err != nil {
			return err
		}
		defer release()

		w, err := relation.Create(out, []string{"protein_accession", "fingerprint"})
		if err != nil {
			return err
		}
		h := cfg.DomainHasher()
		err = eachRecord(cmd.Context(), path, codec, func(rec *match.Record) error {
			if len(rec.Matches) == 0 {
				return nil
			}
			sum, err := h.HashRecord(rec)
			if err != nil {
				return err
			}
			return w.Row(rec.Protein, sum)
		})
		if err != nil {
			w.Close()
			return err
		}
		return w.Close()
	},
}

func init() {
	rootCmd.AddCommand(representCmd)
	representCmd.Flags().StringP("matches", "m", "matches", `match file written by "merge"`)
	representCmd.Flags().StringP("out-file", "o", "-", `output file, supports .gz ("-" for stdout)`)
	representCmd.Flags().StringSlice("rank", nil, `database=rank priority, lower is preferred (repeatable)`)

	rootCmd.AddCommand(archhashCmd)
	archhashCmd.Flags().StringP("matches", "m", "matches", `match file written by "merge"`)
	archhashCmd.Flags().StringP("out-file", "o", "-", `output file, supports .gz ("-" for stdout)`)
	archhashCmd.Flags().Int("max-gap", 0, `largest distance between span boundaries of one group`)
	archhashCmd.Flags().String("digest", "", `fingerprint digest: wyhash or md5`)
}
