package relation

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/sigcmp/internal/domain"
	"github.com/dreamware/sigcmp/internal/match"
	"github.com/dreamware/sigcmp/internal/overlap"
)

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func sampleResults() *overlap.Results {
	res := overlap.NewResults()
	res.Signatures["PF2"] = &overlap.SignatureStats{Sequences: 3, Reviewed: 1, Complete: 2, Residues: 90}
	res.Signatures["PF1"] = &overlap.SignatureStats{Sequences: 5, Complete: 4, CompleteSingleDomain: 1, Residues: 200}
	res.Comparisons[overlap.NewPair("PF2", "PF1")] = &overlap.ComparisonStats{
		Collocations: 2, ReviewedCollocations: 1, ProteinOverlaps: 1, ResidueOverlaps: 40, ReviewedResidueOverlaps: 20,
	}
	return res
}

func TestWriteSignatures(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, len(SignatureColumns))
	infos := map[string]SignatureInfo{
		"PF1": {Accession: "PF1", DatabaseID: "pfam", Name: "Kinase", Description: "Protein\tkinase", IsAMR: true},
	}
	require.NoError(t, WriteSignatures(w, sampleResults(), infos))

	got := lines(&buf)
	require.Len(t, got, 2)
	assert.Equal(t, "PF1\tpfam\tKinase\t\tProtein kinase\t\t\t\t\tY\t5\t0\t4\t0\t1\t200", got[0])
	assert.Equal(t, "PF2\t\t\t\t\t\t\t\t\tN\t3\t1\t2\t0\t0\t90", got[1])
	assert.Equal(t, int64(2), w.Rows())
}

func TestWriteComparisonsIsSymmetric(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, len(ComparisonColumns))
	require.NoError(t, WriteComparisons(w, sampleResults()))
	assert.Equal(t, []string{
		"PF1\tPF2\t2\t1\t1\t20",
		"PF2\tPF1\t2\t1\t1\t20",
	}, lines(&buf))
}

func TestWritePredictions(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, len(PredictionColumns))
	preds := overlap.Predict(sampleResults(), overlap.DefaultMinCollocation)
	require.NoError(t, WritePredictions(w, preds))
	assert.Equal(t, []string{"PF1\tPF2\t2\t1\t40"}, lines(&buf))
}

func TestWriteSimilarities(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, len(SimilarityColumns))
	require.NoError(t, WriteSimilarities(w, overlap.Similarities(sampleResults())))
	assert.Equal(t, []string{
		"PF1\tPF2\t0.5\t0.5\t1\t0.2\t0.25\t0.5\t0.16\t0.2\t" + strconv.FormatFloat(40.0/90.0, 'g', -1, 64),
		"PF2\tPF1\t0.5\t1\t0.5\t0.2\t0.5\t0.25\t0.16\t" + strconv.FormatFloat(40.0/90.0, 'g', -1, 64) + "\t0.2",
	}, lines(&buf))
}

func TestWriteRepresentatives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, len(RepresentativeColumns))
	ds := []domain.Domain{
		{Signature: "PF1", Fragments: match.FragmentSet{
			{Start: 5, End: 40, Status: match.StatusCDiscontinuous},
			{Start: 60, End: 90, Status: match.StatusNDiscontinuous},
		}},
		{Signature: "SM1", Fragments: match.Continuous(100, 150)},
	}
	require.NoError(t, WriteRepresentatives(w, "P12345", ds))
	assert.Equal(t, []string{
		"P12345\tPF1\t5\t90\t5-40-C,60-90-N",
		"P12345\tSM1\t100\t150\t100-150-S",
	}, lines(&buf))

	assert.Error(t, w.Row("too", "few"))
}

func TestCreateCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comparison.tsv.gz")
	w, err := Create(path, ComparisonColumns)
	require.NoError(t, err)
	require.NoError(t, WriteComparisons(w, sampleResults()))
	assert.Equal(t, int64(2), w.Rows())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(ComparisonColumns, "\t")+"\n"))
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestReadSignatureInfo(t *testing.T) {
	input := "# accession\tdb\tname\nPF1\tpfam\tKinase\t\tdesc\t\tdomain\tabs\t\tY\nSM1\tsmart\n"
	infos, err := ReadSignatureInfo(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, infos["PF1"].IsAMR)
	assert.Equal(t, "domain", infos["PF1"].Type)
	assert.Equal(t, "smart", infos["SM1"].DatabaseID)
	assert.Empty(t, infos["SM1"].Name)

	_, err = ReadSignatureInfo(strings.NewReader("\tpfam\n"))
	assert.ErrorIs(t, err, match.ErrMalformed)
}
