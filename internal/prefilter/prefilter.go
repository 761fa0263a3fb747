// Package prefilter implements the local word-list scan used to give authors
// instant feedback before content is submitted. It is advisory: the remote
// classifier behind the screening gate remains the authoritative check.
package prefilter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of a pre-filter check.
type Result struct {
	Clean        bool     `json:"clean"`
	FlaggedWords []string `json:"flagged_words"`
}

// DefaultWords is used when no word list file is configured.
var DefaultWords = []string{
	"asshole",
	"bastard",
	"bitch",
	"bullshit",
	"cunt",
	"dickhead",
	"fuck",
	"fucker",
	"fucking",
	"motherfucker",
	"retard",
	"shit",
	"slut",
	"whore",
	"kys",
}

var (
	nonWordChars = regexp.MustCompile(`[^\pL\pN]+`)
	leetReplacer = strings.NewReplacer(
		"0", "o",
		"1", "i",
		"3", "e",
		"4", "a",
		"5", "s",
		"7", "t",
		"@", "a",
		"$", "s",
		"!", "i",
	)
)

// Filter holds an immutable word set. It is safe for concurrent use.
type Filter struct {
	words map[string]struct{}
}

// New builds a Filter from a word list. Words are normalized the same way as
// scanned text, so list entries may use any case or diacritics.
func New(words []string) *Filter {
	f := &Filter{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if n := normalize(w); n != "" {
			f.words[n] = struct{}{}
		}
	}
	return f
}

// NewFromFile loads a word list (one word per line, '#' starts a comment).
// An empty path returns a filter over DefaultWords.
func NewFromFile(path string) (*Filter, error) {
	if path == "" {
		return New(DefaultWords), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer func() { _ = fh.Close() }()

	words, err := ReadWords(fh)
	if err != nil {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}
	return New(words), nil
}

// ReadWords parses a word list.
func ReadWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			words = append(words, line)
		}
	}
	return words, sc.Err()
}

// Size returns the number of distinct words in the filter.
func (f *Filter) Size() int {
	return len(f.words)
}

// Check scans text and reports every listed word it contains, once each, in
// order of first appearance. The same input always yields the same result.
func (f *Filter) Check(text string) Result {
	res := Result{Clean: true, FlaggedWords: []string{}}
	if f == nil || len(f.words) == 0 {
		return res
	}

	seen := make(map[string]struct{})
	for _, raw := range strings.Fields(text) {
		for _, cand := range candidates(raw) {
			if _, ok := f.words[cand]; !ok {
				continue
			}
			if _, dup := seen[cand]; !dup {
				seen[cand] = struct{}{}
				res.FlaggedWords = append(res.FlaggedWords, cand)
			}
			break
		}
	}
	res.Clean = len(res.FlaggedWords) == 0
	return res
}

// candidates returns the forms of a whitespace-delimited token worth looking
// up: the plain normalized token, its leetspeak reading, and both with runs of
// repeated letters collapsed.
func candidates(raw string) []string {
	out := make([]string, 0, 4)
	add := func(s string) {
		if s == "" {
			return
		}
		for _, o := range out {
			if o == s {
				return
			}
		}
		out = append(out, s)
	}

	plain := normalize(raw)
	leet := normalize(leetReplacer.Replace(strings.ToLower(raw)))
	add(plain)
	add(leet)
	add(collapseRepeats(plain))
	add(collapseRepeats(leet))
	return out
}

// normalize lower-cases, strips diacritics and drops every non letter/digit.
func normalize(s string) string {
	// the transformer is stateful, so build one per call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(normFunc, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(nonWordChars.ReplaceAllString(out, ""))
}

// collapseRepeats squeezes runs of three or more identical runes to one.
func collapseRepeats(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); {
		j := i
		for j < len(rs) && rs[j] == rs[i] {
			j++
		}
		if j-i >= 3 {
			b.WriteRune(rs[i])
		} else {
			b.WriteString(string(rs[i:j]))
		}
		i = j
	}
	return b.String()
}
