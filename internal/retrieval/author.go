package retrieval

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"lab-dashboard/internal/logger"
	"lab-dashboard/models"
	"lab-dashboard/utils"
)

// AuthorScanRunes is how much leading content is searched for an author label
const AuthorScanRunes = 2000

const filenameSeparators = "_-・＿－[]［］【】()（）〔〕"

var (
	bracketName = regexp.MustCompile(`[\[［【（(〔]\s*([\p{Han}\p{Hiragana}\p{Katakana}ー]{2,10})\s*[\]］】）)〕]`)
)

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) || r == 'ー'
}

func isCJKOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isCJK(r) {
			return false
		}
	}
	return true
}

func fileStem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// InferAuthor guesses who wrote a document from its file name and leading
// content. It tries bracketed names, then file name tokens, then an explicit
// label, then a name followed by an honorific or student marker. The result
// is a best guess; "" means no guess.
func InferAuthor(filename, content string, t *Tables) (author string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Author inference failed", "filename", filename, "panic", r)
			author = ""
		}
	}()

	stem := fileStem(filename)

	for _, m := range bracketName.FindAllStringSubmatch(stem, -1) {
		if !t.stop[foldKey(m[1])] {
			return m[1]
		}
	}
	if name := nameFromFilename(stem, t); name != "" {
		return name
	}

	head := utils.TruncateRunes(content, AuthorScanRunes)
	if name := labelledAuthor(head, t); name != "" {
		return name
	}
	return markedName(head, t)
}

// nameFromFilename keeps CJK-only tokens of 2-10 runes that are not stop
// words and returns the longest one
func nameFromFilename(stem string, t *Tables) string {
	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(filenameSeparators, r)
	})

	best := ""
	for _, f := range fields {
		f = stripStopwords(f, t)
		n := runeLen(f)
		if n < 2 || n > 10 || !isCJKOnly(f) || t.stop[foldKey(f)] {
			continue
		}
		if n > runeLen(best) {
			best = f
		}
	}
	return best
}

// stripStopwords removes stop words glued onto a name, as in "小野卒論"
func stripStopwords(token string, t *Tables) string {
	for _, w := range t.AuthorStoplist {
		if token == w {
			return token
		}
	}
	for _, w := range t.AuthorStoplist {
		token = strings.ReplaceAll(token, w, "")
	}
	return token
}

func labelledAuthor(head string, t *Tables) string {
	for _, re := range t.labelPatterns {
		if m := re.FindStringSubmatch(head); m != nil {
			if name := utils.NormalizeText(m[1], 30); name != "" {
				return name
			}
		}
	}
	return ""
}

func markedName(head string, t *Tables) string {
	for _, re := range t.markerPatterns {
		for _, m := range re.FindAllStringSubmatch(head, -1) {
			name := m[1]
			if t.stop[foldKey(name)] || t.IsGeneric(name) {
				continue
			}
			return name
		}
	}
	return ""
}

// InferType classifies a document by file name markers
func InferType(filename string, t *Tables) models.DocumentType {
	folded := foldKey(fileStem(filename))
	for _, m := range t.ThesisMarkers {
		if containsFold(folded, m) {
			return models.TypeThesis
		}
	}
	for _, m := range t.PaperMarkers {
		if containsFold(folded, m) {
			return models.TypePaper
		}
	}
	return models.TypeDocument
}
