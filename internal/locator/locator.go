// Package locator maps a possibly stale (line, signature) key from an external
// report onto a call site of the current source.
package locator

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"typeright/internal/source"
)

// Scores for the match tiers. Similarity-only matches are scaled into
// [0, maxFuzzy] so they never beat a name match.
const (
	scoreExact     = 1.0
	scoreQualified = 0.9
	scoreBareName  = 0.75
	maxFuzzy       = 0.7
	// Threshold is the minimum score a candidate needs.
	Threshold = 0.5
)

// Candidate is a scored call site.
type Candidate struct {
	Site  *source.CallSite
	Score float64
}

// Locate returns the call site within ±window lines of approxLine that best
// matches signature. signature may be a full `def name(...)` header or just
// a (dotted) function name. It returns false when nothing clears the
// threshold or when the best candidate does not strictly beat the runner-up.
func Locate(sites []*source.CallSite, approxLine int, signature string, window int) (*source.CallSite, bool) {
	ranked := Rank(sites, approxLine, signature, window)
	if len(ranked) == 0 || ranked[0].Score < Threshold {
		return nil, false
	}
	if len(ranked) > 1 && ranked[1].Score >= ranked[0].Score {
		return nil, false
	}
	return ranked[0].Site, true
}

// Rank scores every site inside the window, best first.
func Rank(sites []*source.CallSite, approxLine int, signature string, window int) []Candidate {
	sig := Normalize(signature)
	sigTokens := Tokens(sig)
	name := signatureName(sig)

	var out []Candidate
	for _, s := range sites {
		if d := s.Line - approxLine; d > window || -d > window {
			continue
		}
		out = append(out, Candidate{Site: s, Score: score(s, sigTokens, name)})
	}
	// Insertion sort keeps equal scores in source order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func score(s *source.CallSite, sigTokens []string, name string) float64 {
	siteTokens := Tokens(Normalize(s.Signature))
	if len(sigTokens) > 1 && equalTokens(sigTokens, siteTokens) {
		return scoreExact
	}
	if name != "" {
		if name == s.QualName {
			return scoreQualified
		}
		if bare := name[strings.LastIndexByte(name, '.')+1:]; bare == s.Name {
			return scoreBareName
		}
	}
	return Dice(sigTokens, siteTokens) * maxFuzzy
}

// Normalize applies NFC and collapses whitespace runs.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// signatureName extracts the function name from `def name(...)`, or returns
// the whole string when it is a bare dotted name.
func signatureName(sig string) string {
	s := strings.TrimPrefix(sig, "async ")
	s = strings.TrimPrefix(s, "def ")
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r != '.' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	return s
}

// Tokens splits text into identifier/number runs and single punctuation
// characters; whitespace is dropped.
func Tokens(s string) []string {
	var out []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			word.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			out = append(out, string(r))
		}
	}
	flush()
	return out
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Dice is the Sorensen-Dice coefficient of two token multisets.
func Dice(a, b []string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	shared := 0
	for _, t := range b {
		if counts[t] > 0 {
			counts[t]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
