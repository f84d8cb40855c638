package retrieval

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	lowerASCIITerm = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	hanRun      = regexp.MustCompile(`\p{Han}+`)
	katakanaRun = regexp.MustCompile(`[\p{Katakana}ー]{2,}`)
	asciiRun    = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9-]+`)
)

// foldKey is the matching form of a string: NFKC (full-width to half-width)
// then lower case
func foldKey(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// squash removes all whitespace; author names are compared without the space
// between family and given name
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z'
}

// containsFold reports whether the folded haystack contains key. ASCII keys
// must sit on word boundaries so "ai" does not match inside "training".
func containsFold(folded, key string) bool {
	key = foldKey(key)
	if key == "" {
		return false
	}
	if !isASCII(key) {
		return strings.Contains(folded, key)
	}
	for off := 0; ; {
		i := strings.Index(folded[off:], key)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(key)
		if (start == 0 || !isWordByte(folded[start-1])) && (end == len(folded) || !isWordByte(folded[end])) {
			return true
		}
		off = start + 1
	}
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isHiraganaOnly(s string) bool {
	for _, r := range s {
		if !unicode.Is(unicode.Hiragana, r) && r != 'ー' {
			return false
		}
	}
	return true
}

func runeLen(s string) int {
	return len([]rune(s))
}

// Tokenize splits a query on whitespace and punctuation and adds script runs
// as supplementary tokens: Han runs together with their 2 and 3 rune windows
// (so "顔画像処理" also yields "顔画像"), katakana words and ASCII words.
// Japanese has no word spacing, so a sentence-long query would otherwise be
// one token. Single-rune and hiragana-only tokens are dropped. Order is first
// appearance.
func Tokenize(query string) []string {
	query = norm.NFKC.String(query)

	seen := make(map[string]bool)
	var tokens []string
	add := func(tok string) {
		tok = strings.TrimSpace(tok)
		if runeLen(tok) < 2 || isHiraganaOnly(tok) {
			return
		}
		key := strings.ToLower(tok)
		if seen[key] {
			return
		}
		seen[key] = true
		tokens = append(tokens, tok)
	}

	for _, f := range strings.FieldsFunc(query, isSeparator) {
		add(f)
	}
	for _, run := range hanRun.FindAllString(query, -1) {
		add(run)
		for _, w := range hanWindows(run) {
			add(w)
		}
	}
	for _, run := range katakanaRun.FindAllString(query, -1) {
		add(run)
	}
	for _, run := range asciiRun.FindAllString(query, -1) {
		add(run)
	}
	return tokens
}

// hanWindows returns every 3 rune window of run, then every 2 rune window.
// Runs of two runes or fewer have none beyond themselves.
func hanWindows(run string) []string {
	r := []rune(run)
	if len(r) <= 2 {
		return nil
	}
	var out []string
	for _, n := range []int{3, 2} {
		for i := 0; i+n <= len(r); i++ {
			if n == len(r) {
				continue
			}
			out = append(out, string(r[i:i+n]))
		}
	}
	return out
}

// Expand adds the synonyms of every field key contained in a token. It is a
// pure function of its inputs; output keeps the tokens first, then expansions
// in sorted key order.
func Expand(tokens []string, synonyms map[string][]string) []string {
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	add := func(w string) {
		k := foldKey(w)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, w)
	}

	for _, t := range tokens {
		add(t)
	}
	for _, t := range tokens {
		folded := foldKey(t)
		for _, k := range keys {
			if !containsFold(folded, k) {
				continue
			}
			add(k)
			for _, s := range synonyms[k] {
				add(s)
			}
		}
	}
	return out
}
