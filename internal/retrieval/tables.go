package retrieval

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
)

//go:embed tables.json
var defaultTablesJSON []byte

// Tables holds every dictionary the heuristics consult. They are data, not
// code, so they can be replaced from a JSON file without touching the scorer.
type Tables struct {
	// FieldSynonyms maps a field key to related terms; used for query expansion
	FieldSynonyms map[string][]string `json:"fieldSynonyms"`
	// FieldNormalization maps subject variants of a field inquiry to a canonical field tag
	FieldNormalization map[string]string `json:"fieldNormalization"`
	// FieldKeywords is the aggressive keyword set searched for a canonical field tag
	FieldKeywords map[string][]string `json:"fieldKeywords"`

	TechnicalTerms []string `json:"technicalTerms"`

	AuthorStoplist []string `json:"authorStoplist"`
	AuthorLabels   []string `json:"authorLabels"`
	NameMarkers    []string `json:"nameMarkers"`
	GenericTerms   []string `json:"genericTerms"`

	ThesisMarkers []string `json:"thesisMarkers"`
	PaperMarkers  []string `json:"paperMarkers"`

	technical map[string]bool
	generic   map[string]bool
	stop      map[string]bool
	normKeys  []string

	labelPatterns  []*regexp.Regexp
	markerPatterns []*regexp.Regexp
}

// DefaultTables returns the built-in dictionaries
func DefaultTables() *Tables {
	t, err := ParseTables(defaultTablesJSON)
	if err != nil {
		panic(fmt.Sprintf("retrieval: built-in tables are invalid: %v", err))
	}
	return t
}

// LoadTables reads dictionaries from a JSON file with the same shape as the built-in ones
func LoadTables(path string) (*Tables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTables(raw)
}

func ParseTables(raw []byte) (*Tables, error) {
	var t Tables
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse retrieval tables: %w", err)
	}
	t.index()
	return &t, nil
}

func (t *Tables) index() {
	t.technical = foldSet(t.TechnicalTerms)
	t.generic = foldSet(t.GenericTerms)
	t.stop = foldSet(t.AuthorStoplist)

	t.labelPatterns = t.labelPatterns[:0]
	for _, label := range t.AuthorLabels {
		t.labelPatterns = append(t.labelPatterns,
			regexp.MustCompile(`(?i)`+regexp.QuoteMeta(label)+`\s*[:：]\s*([^\n\r,，、;；:：]{2,30})`))
	}
	t.markerPatterns = t.markerPatterns[:0]
	for _, marker := range t.NameMarkers {
		t.markerPatterns = append(t.markerPatterns,
			regexp.MustCompile(`(\p{Han}{2,6})\s*`+regexp.QuoteMeta(marker)))
	}

	// longest variant first so "心拍変動" wins over "心拍"
	t.normKeys = make([]string, 0, len(t.FieldNormalization))
	for k := range t.FieldNormalization {
		t.normKeys = append(t.normKeys, k)
	}
	sort.Slice(t.normKeys, func(i, j int) bool {
		li, lj := len([]rune(t.normKeys[i])), len([]rune(t.normKeys[j]))
		if li != lj {
			return li > lj
		}
		return t.normKeys[i] < t.normKeys[j]
	})
}

func foldSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[foldKey(w)] = true
	}
	return set
}

// IsTechnical reports whether token looks like a technical term: all-lowercase
// ASCII or listed in TechnicalTerms
func (t *Tables) IsTechnical(token string) bool {
	if lowerASCIITerm.MatchString(token) {
		return true
	}
	return t.technical[foldKey(token)]
}

func (t *Tables) IsGeneric(term string) bool {
	return t.generic[foldKey(term)]
}

// NormalizeField maps a field-inquiry subject to its canonical tag. ok is false
// when no variant occurs in the subject.
func (t *Tables) NormalizeField(subject string) (tag string, ok bool) {
	folded := foldKey(subject)
	for _, k := range t.normKeys {
		if containsFold(folded, k) {
			return t.FieldNormalization[k], true
		}
	}
	return "", false
}
