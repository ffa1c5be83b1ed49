package shard

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dreamware/sigcmp/internal/match"
)

// Row is one upstream protein-to-signature match row.
type Row struct {
	Protein   string
	Reviewed  bool
	Fragment  bool // protein sequence is incomplete
	TaxonLeft int
	Signature string
	Database  string
	Start     int
	End       int
	Fragments string // optional; "{Start}-{End}-S" when empty
}

// FragmentSet returns the row's parsed fragments.
func (r Row) FragmentSet() (match.FragmentSet, error) {
	if r.Fragments == "" {
		fs := match.Continuous(r.Start, r.End)
		return fs, fs.Validate()
	}
	return match.ParseFragments(r.Fragments)
}

// RowSource streams upstream rows. Next returns io.EOF when exhausted.
type RowSource interface {
	Next() (Row, error)
}

// SliceSource serves rows from memory.
type SliceSource struct {
	rows []Row
	pos  int
}

// NewSliceSource creates a RowSource over rows
func NewSliceSource(rows []Row) *SliceSource {
	return &SliceSource{rows: rows}
}

// Next returns the next row or io.EOF
func (s *SliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return Row{}, io.EOF
	}
	s.pos++
	return s.rows[s.pos-1], nil
}

// TSVSource parses tab-separated upstream rows:
//
//	protein  S|T  Y|N  taxon_left  signature  database  start  end  [fragments]
//
// S marks a reviewed protein and Y an incomplete (fragment) sequence.
type TSVSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewTSVSource reads rows from r
func NewTSVSource(r io.Reader) *TSVSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &TSVSource{scanner: sc}
}

// Next returns the next parsed row or io.EOF
func (s *TSVSource) Next() (Row, error) {
	for s.scanner.Scan() {
		s.line++
		text := s.scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		row, err := parseRow(text)
		if err != nil {
			return Row{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		return row, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Row{}, err
	}
	return Row{}, io.EOF
}

func parseRow(text string) (Row, error) {
	f := strings.Split(text, "\t")
	if len(f) < 8 {
		return Row{}, fmt.Errorf("%w: expected at least 8 columns, got %d", match.ErrMalformed, len(f))
	}
	taxon, err := strconv.Atoi(f[3])
	if err != nil {
		return Row{}, fmt.Errorf("%w: taxon %q", match.ErrMalformed, f[3])
	}
	start, err := strconv.Atoi(f[6])
	if err != nil {
		return Row{}, fmt.Errorf("%w: start %q", match.ErrMalformed, f[6])
	}
	end, err := strconv.Atoi(f[7])
	if err != nil {
		return Row{}, fmt.Errorf("%w: end %q", match.ErrMalformed, f[7])
	}
	row := Row{
		Protein:   f[0],
		Reviewed:  f[1] == "S",
		Fragment:  f[2] == "Y",
		TaxonLeft: taxon,
		Signature: f[4],
		Database:  f[5],
		Start:     start,
		End:       end,
	}
	if len(f) > 8 {
		row.Fragments = f[8]
	}
	return row, nil
}
