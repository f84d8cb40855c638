package retrieval

import (
	"regexp"
	"strings"
	"unicode"

	"lab-dashboard/models"

	"golang.org/x/text/unicode/norm"
)

// IntentKind is the closed set of query shapes the engine distinguishes
type IntentKind string

const (
	// IntentField: "people who researched X", "studies using X"
	IntentField IntentKind = "field"
	// IntentAuthor: the query names a person or title present in the corpus
	IntentAuthor IntentKind = "author"
	// IntentGeneral: anything else
	IntentGeneral IntentKind = "general"
)

// Intent is the classification of one query.
//
// Precedence: a field inquiry wins over an author match, which wins over the
// general case. A field inquiry therefore ignores the author guard and the
// semantic prefilter.
type Intent struct {
	Kind IntentKind

	// Subject and Field are set for IntentField. Field is the canonical tag,
	// empty when the subject is not in the normalization table.
	Subject string
	Field   string

	// Candidates are the documents whose author or title matched, for IntentAuthor
	Candidates []models.Document
	// Names are the query runs that matched
	Names []string
}

var fieldInquiryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(.+?)(?:を|について)(?:研究|専攻|調査)(?:して(?:いる|いた|る)|した|してた)(?:人|方|学生|メンバー)`),
	regexp.MustCompile(`(.+?)の研究を(?:して(?:いる|いた|る)|した|してた)(?:人|方|学生|メンバー)`),
	regexp.MustCompile(`(.+?)を(?:使った|使っている|用いた|使用した|利用した|扱った)(?:研究|論文|卒論|修論|人)`),
	regexp.MustCompile(`(.+?)(?:に関する|に関係する|についての)(?:研究|論文|卒論|修論)`),
	regexp.MustCompile(`(?i)\bwho\s+(?:has\s+)?(?:researched|studied|studies|works?\s+on|worked\s+on|used)\s+(.+)`),
	regexp.MustCompile(`(?i)\b(?:studies|research|papers|theses|works)\s+(?:using|on|about|with)\s+(.+)`),
}

// subjectLead strips a leading context clause such as "研究室で" or "この中で"
var subjectLead = regexp.MustCompile(`^.*(?:で|には|では|から|のうち|の中で)`)

// DetectFieldInquiry extracts the subject of a field inquiry
func DetectFieldInquiry(query string) (subject string, ok bool) {
	q := norm.NFKC.String(query)
	for _, re := range fieldInquiryPatterns {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		s := cleanSubject(m[1])
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func cleanSubject(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool { return isSeparator(r) })
	if cut := subjectLead.ReplaceAllString(s, ""); runeLen(cut) >= 2 {
		s = cut
	}
	return strings.TrimFunc(s, func(r rune) bool { return isSeparator(r) || r == '?' })
}

// Classify decides which search path a query takes
func Classify(query string, docs []models.Document, t *Tables) Intent {
	if subject, ok := DetectFieldInquiry(query); ok {
		tag, _ := t.NormalizeField(subject)
		return Intent{Kind: IntentField, Subject: subject, Field: tag}
	}

	names := nameRuns(query, t)
	if len(names) > 0 {
		matched := make(map[string]bool)
		var candidates []models.Document
		var hits []string
		for _, name := range names {
			hit := false
			for _, d := range docs {
				if !matchesPerson(d, name) {
					continue
				}
				hit = true
				if !matched[d.ID] {
					matched[d.ID] = true
					candidates = append(candidates, d)
				}
			}
			if hit {
				hits = append(hits, name)
			}
		}
		if len(candidates) > 0 {
			return Intent{Kind: IntentAuthor, Candidates: candidates, Names: hits}
		}
	}

	return Intent{Kind: IntentGeneral}
}

// nameRuns returns the Han runs of 2-6 runes that could be a name or a title word
func nameRuns(query string, t *Tables) []string {
	var out []string
	seen := make(map[string]bool)
	for _, run := range hanRun.FindAllString(norm.NFKC.String(query), -1) {
		n := runeLen(run)
		if n < 2 || n > 6 || seen[run] || t.IsGeneric(run) {
			continue
		}
		seen[run] = true
		out = append(out, run)
	}
	return out
}

// matchesPerson compares a query run against the author (full name and
// family name, in both directions) and against the title
func matchesPerson(d models.Document, run string) bool {
	if d.Author != "" {
		for _, key := range authorKeys(d.Author) {
			if runeLen(key) < 2 {
				continue
			}
			if strings.Contains(run, key) || strings.Contains(key, run) {
				return true
			}
		}
	}
	return strings.Contains(norm.NFKC.String(d.DisplayTitle()), run)
}

// authorKeys is the space-free full name plus the family name when the
// author is written with a separating space
func authorKeys(author string) []string {
	author = norm.NFKC.String(strings.TrimSpace(author))
	keys := []string{squash(author)}
	if i := strings.IndexFunc(author, unicode.IsSpace); i > 0 {
		keys = append(keys, author[:i])
	}
	return keys
}
