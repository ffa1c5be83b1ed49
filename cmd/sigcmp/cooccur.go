package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/cooccur"
	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/organizer"
	"github.com/dreamware/sigcmp/internal/relation"
)

var cooccurCmd = &cobra.Command{
	Use:   "cooccur groups.tsv[.gz]",
	Short: "Count groups shared by every pair of signatures",
	Long: `Count groups shared by every pair of signatures

Input columns (tab-separated): signature, label, group
A group is any shared property, such as a protein description identifier
or a taxon; the label qualifies it (for example a taxonomic rank) and may
be empty. Output columns: signature_acc_1, signature_acc_2, label, count
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out-file")

		groups, sigs, err := readGroups(args[0])
		if err != nil {
			return err
		}
		counts, err := cooccur.CountPairs(cmd.Context(), groups, organizer.Boundaries(sigs, cfg.BucketSize), cooccur.Options{
			Dir:        cfg.TmpDir,
			Workers:    cfg.Workers,
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			return err
		}
		defer counts.Pairs.Remove()

		w, err := relation.Create(out, []string{"signature_acc_1", "signature_acc_2", "label", "count"})
		if err != nil {
			return err
		}
		it := counts.Pairs.Iterator()
		defer it.Close()
		for it.Next() {
			for _, pc := range it.Values() {
				if err := w.Row(it.Key(), pc.Other, pc.Label, strconv.Itoa(pc.Count)); err != nil {
					w.Close()
					return err
				}
			}
		}
		if err := it.Err(); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	},
}

// readGroups returns the groups of the file and the sorted distinct
// signatures.
func readGroups(file string) ([]cooccur.Group, []string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()

	type key struct{ label, group string }
	index := make(map[key]int)
	var groups []cooccur.Group
	seen := make(map[string]bool)
	var sigs []string

	sc := bufio.NewScanner(fh)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f := strings.Split(text, "\t")
		if len(f) != 3 || f[0] == "" {
			return nil, nil, fmt.Errorf("%s: line %d: %w: expected signature, label, group", file, line, match.ErrMalformed)
		}
		k := key{f[1], f[2]}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, cooccur.Group{Label: f[1]})
		}
		groups[i].Signatures = append(groups[i].Signatures, f[0])
		if !seen[f[0]] {
			seen[f[0]] = true
			sigs = append(sigs, f[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if len(sigs) == 0 {
		return nil, nil, fmt.Errorf("%s: no groups", file)
	}
	slices.Sort(sigs)
	return groups, sigs, nil
}

var taxaCmd = &cobra.Command{
	Use:   "taxa",
	Short: "List the taxa every signature occurs in",
	Long: `List the taxa every signature occurs in

Output columns: signature_accession, num_taxa, taxon_left_numbers
(comma-separated, ascending)
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("matches")
		out, _ := cmd.Flags().GetString("out-file")

		codec, release, err := newCodec()
		if err != nil {
			return err
		}
		defer release()

		// first pass collects the signatures to cut the key space
		seen := make(map[string]bool)
		err = eachRecord(cmd.Context(), path, codec, func(rec *match.Record) error {
			for sig := range rec.Matches {
				seen[sig] = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(seen) == 0 {
			return fmt.Errorf("%s: no matches", path)
		}
		sigs := make([]string, 0, len(seen))
		for sig := range seen {
			sigs = append(sigs, sig)
		}
		slices.Sort(sigs)

		idx, err := cooccur.NewTaxonIndex(organizer.Boundaries(sigs, cfg.BucketSize), cfg.TmpDir, cfg.FlushEvery)
		if err != nil {
			return err
		}
		defer idx.Remove()
		if err := eachRecord(cmd.Context(), path, codec, idx.Add); err != nil {
			return err
		}
		if _, err := idx.Finish(cfg.Workers); err != nil {
			return err
		}

		w, err := relation.Create(out, []string{"signature_accession", "num_taxa", "taxon_left_numbers"})
		if err != nil {
			return err
		}
		err = idx.Each(func(sig string, taxa []int) error {
			ids := make([]string, len(taxa))
			for i, t := range taxa {
				ids[i] = strconv.Itoa(t)
			}
			return w.Row(sig, strconv.Itoa(len(taxa)), strings.Join(ids, ","))
		})
		if err != nil {
			w.Close()
			return err
		}
		return w.Close()
	},
}

func init() {
	rootCmd.AddCommand(cooccurCmd)
	cooccurCmd.Flags().StringP("out-file", "o", "-", `output file, supports .gz ("-" for stdout)`)

	rootCmd.AddCommand(taxaCmd)
	taxaCmd.Flags().StringP("matches", "m", "matches", `match file written by "merge"`)
	taxaCmd.Flags().StringP("out-file", "o", "-", `output file, supports .gz ("-" for stdout)`)
}
