package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/wyhash"
	"golang.org/x/exp/slices"

	"github.com/dreamware/sigcmp/internal/match"
)

// Digest names a fingerprint hash function.
type Digest string

// Supported digests
const (
	DigestWyhash Digest = "wyhash"
	DigestMD5    Digest = "md5"
)

// DefaultMaxGap is the largest distance between consecutive span boundaries
// that keeps them in the same group.
const DefaultMaxGap = 20

// Hasher computes domain architecture fingerprints.
type Hasher struct {
	MaxGap int
	Digest Digest
}

// NewHasher creates a hasher with the default gap and digest
func NewHasher() Hasher {
	return Hasher{MaxGap: DefaultMaxGap, Digest: DigestWyhash}
}

type boundary struct {
	pos int
	sig string
}

// Structure returns the ordered architecture tokens of a protein: the
// signature of every span start and end sorted by position, with an empty
// token wherever consecutive positions are more than MaxGap apart.
func (h Hasher) Structure(spans map[string][]match.Span) []string {
	var bounds []boundary
	for sig, ss := range spans {
		for _, s := range ss {
			bounds = append(bounds, boundary{s.Start, sig}, boundary{s.End, sig})
		}
	}
	if len(bounds) == 0 {
		return nil
	}
	slices.SortFunc(bounds, func(a, b boundary) int {
		if a.pos != b.pos {
			return a.pos - b.pos
		}
		return strings.Compare(a.sig, b.sig)
	})

	tokens := make([]string, 0, len(bounds)+len(bounds)/2)
	prev := bounds[0].pos
	for _, b := range bounds {
		if b.pos > prev+h.MaxGap {
			tokens = append(tokens, "")
		}
		tokens = append(tokens, b.sig)
		prev = b.pos
	}
	return tokens
}

// Hash returns the hex fingerprint of the protein's architecture.
func (h Hasher) Hash(spans map[string][]match.Span) (string, error) {
	key := strings.Join(h.Structure(spans), "/")
	switch h.Digest {
	case DigestWyhash, "":
		return strconv.FormatUint(wyhash.HashString(key, 0), 16), nil
	case DigestMD5:
		sum := md5.Sum([]byte(key))
		return hex.EncodeToString(sum[:]), nil
	}
	return "", fmt.Errorf("unknown digest %q", h.Digest)
}

// HashRecord fingerprints the merged spans of every signature of rec.
func (h Hasher) HashRecord(rec *match.Record) (string, error) {
	return h.Hash(rec.Spans())
}
