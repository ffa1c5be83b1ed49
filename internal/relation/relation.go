// Package relation writes aggregation results as tab-separated relations
// ready for bulk loading.
package relation

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/domain"
	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/overlap"
)

// Column headers of every relation.
var (
	SignatureColumns = []string{
		"accession", "database_id", "name", "llm_name", "description", "llm_description",
		"type", "abstract", "llm_abstract", "is_amr",
		"num_sequences", "num_reviewed_sequences", "num_complete_sequences",
		"num_complete_reviewed_sequences", "num_complete_single_domain_sequences", "num_residues",
	}
	ComparisonColumns = []string{
		"signature_acc_1", "signature_acc_2", "num_collocations",
		"num_reviewed_collocations", "num_overlaps", "num_reviewed_res_overlaps",
	}
	PredictionColumns = []string{
		"signature_acc_1", "signature_acc_2", "num_collocations",
		"num_protein_overlaps", "num_residue_overlaps",
	}
	SimilarityColumns = []string{
		"signature_acc_1", "signature_acc_2",
		"coll_index", "coll_cont1", "coll_cont2",
		"povr_index", "povr_cont1", "povr_cont2",
		"rovr_index", "rovr_cont1", "rovr_cont2",
	}
	RepresentativeColumns = []string{
		"protein_accession", "signature_accession", "start", "end", "fragments",
	}
)

// Writer emits tab-separated rows.
type Writer struct {
	w      io.Writer
	closer io.Closer
	cols   int
	rows   int64
}

// Create opens path for writing; a .gz, .xz, .zst or .bz2 suffix compresses
// the output. "-" writes to stdout.
func Create(path string, columns []string) (*Writer, error) {
	fh, err := xopen.Wopen(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{w: fh, closer: fh, cols: len(columns)}
	if err := w.Row(columns...); err != nil {
		fh.Close()
		return nil, err
	}
	w.rows = 0
	return w, nil
}

// NewWriter writes rows without a header to w
func NewWriter(w io.Writer, columns int) *Writer {
	return &Writer{w: w, cols: columns}
}

// Row writes one row. Tabs and newlines inside fields are replaced by
// spaces.
func (w *Writer) Row(fields ...string) error {
	if len(fields) != w.cols {
		return fmt.Errorf("row has %d fields, relation has %d columns", len(fields), w.cols)
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(strings.Map(clean, f))
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w.w, b.String())
	if err == nil {
		w.rows++
	}
	return err
}

func clean(r rune) rune {
	if r == '\t' || r == '\n' || r == '\r' {
		return ' '
	}
	return r
}

// Rows returns the number of rows written, header excluded
func (w *Writer) Rows() int64 { return w.rows }

// Close flushes and closes the underlying file, if any.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// SignatureInfo is the descriptive part of a signature row.
type SignatureInfo struct {
	Accession      string
	DatabaseID     string
	Name           string
	LLMName        string
	Description    string
	LLMDescription string
	Type           string
	Abstract       string
	LLMAbstract    string
	IsAMR          bool
}

// ReadSignatureInfo parses tab-separated signature descriptions, one per
// line in SignatureColumns order up to is_amr. Missing trailing fields are
// left empty. Blank lines and lines starting with '#' are skipped.
func ReadSignatureInfo(r io.Reader) (map[string]SignatureInfo, error) {
	infos := make(map[string]SignatureInfo)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f := strings.Split(text, "\t")
		if f[0] == "" {
			return nil, fmt.Errorf("line %d: %w: missing accession", line, match.ErrMalformed)
		}
		f = append(f, make([]string, max(0, 10-len(f)))...)
		infos[f[0]] = SignatureInfo{
			Accession:      f[0],
			DatabaseID:     f[1],
			Name:           f[2],
			LLMName:        f[3],
			Description:    f[4],
			LLMDescription: f[5],
			Type:           f[6],
			Abstract:       f[7],
			LLMAbstract:    f[8],
			IsAMR:          f[9] == "Y" || f[9] == "true" || f[9] == "t",
		}
	}
	return infos, sc.Err()
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// WriteSignatures writes one row per signature, ordered by accession.
// Signatures without info only get their accession and counters.
func WriteSignatures(w *Writer, res *overlap.Results, infos map[string]SignatureInfo) error {
	for _, acc := range res.SortedSignatures() {
		s := res.Signatures[acc]
		info := infos[acc]
		amr := "N"
		if info.IsAMR {
			amr = "Y"
		}
		err := w.Row(acc, info.DatabaseID, info.Name, info.LLMName, info.Description, info.LLMDescription,
			info.Type, info.Abstract, info.LLMAbstract, amr,
			itoa(s.Sequences), itoa(s.Reviewed), itoa(s.Complete),
			itoa(s.CompleteReviewed), itoa(s.CompleteSingleDomain), itoa(s.Residues))
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteComparisons writes every compared pair in both directions, ordered
// by (signature_acc_1, signature_acc_2).
func WriteComparisons(w *Writer, res *overlap.Results) error {
	type row struct {
		a, b string
		c    *overlap.ComparisonStats
	}
	rows := make([]row, 0, 2*len(res.Comparisons))
	for p, c := range res.Comparisons {
		rows = append(rows, row{p.A, p.B, c}, row{p.B, p.A, c})
	}
	slices.SortFunc(rows, func(x, y row) int {
		if x.a != y.a {
			return strings.Compare(x.a, y.a)
		}
		return strings.Compare(x.b, y.b)
	})
	for _, r := range rows {
		err := w.Row(r.a, r.b, itoa(r.c.Collocations), itoa(r.c.ReviewedCollocations),
			itoa(r.c.ProteinOverlaps), itoa(r.c.ReviewedResidueOverlaps))
		if err != nil {
			return err
		}
	}
	return nil
}

// WritePredictions writes the predicted pairs in the given order.
func WritePredictions(w *Writer, preds []overlap.Prediction) error {
	for _, p := range preds {
		if err := w.Row(p.A, p.B, itoa(p.Collocations), itoa(p.ProteinOverlaps), itoa(p.ResidueOverlaps)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSimilarities writes the similarity and containment measures of every
// pair in both directions, ordered by (signature_acc_1, signature_acc_2).
func WriteSimilarities(w *Writer, sims []overlap.Prediction) error {
	rows := make([]overlap.Prediction, 0, 2*len(sims))
	for _, p := range sims {
		rows = append(rows, p, p.Reverse())
	}
	slices.SortFunc(rows, func(x, y overlap.Prediction) int {
		if x.A != y.A {
			return strings.Compare(x.A, y.A)
		}
		return strings.Compare(x.B, y.B)
	})
	for _, p := range rows {
		err := w.Row(p.A, p.B,
			ftoa(p.Similarity), ftoa(p.ContainmentA), ftoa(p.ContainmentB),
			ftoa(p.OverlapSimilarity), ftoa(p.OverlapContainmentA), ftoa(p.OverlapContainmentB),
			ftoa(p.ResidueSimilarity), ftoa(p.ResidueContainmentA), ftoa(p.ResidueContainmentB))
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteRepresentatives writes one row per selected domain of a protein.
func WriteRepresentatives(w *Writer, protein string, domains []domain.Domain) error {
	for _, d := range domains {
		span := d.Span()
		err := w.Row(protein, d.Signature, strconv.Itoa(span.Start), strconv.Itoa(span.End), d.Fragments.String())
		if err != nil {
			return err
		}
	}
	return nil
}
