package retrieval

import (
	"sort"
	"strings"

	"lab-dashboard/models"
)

// Weights are the keyword ranker's score contributions. The defaults are
// placeholders pending evaluation data, not calibrated constants.
type Weights struct {
	AuthorExact   float64 `json:"authorExact"`
	AuthorPartial float64 `json:"authorPartial"`

	Title          float64 `json:"title"`
	TitleTechnical float64 `json:"titleTechnical"`

	ContentSingle    float64 `json:"contentSingle"`
	ContentFew       float64 `json:"contentFew"`
	ContentMany      float64 `json:"contentMany"`
	ContentTechnical float64 `json:"contentTechnical"`
	ContentFewMin    int     `json:"contentFewMin"`
	ContentManyMin   int     `json:"contentManyMin"`

	Cohesion    float64 `json:"cohesion"`
	CohesionMin int     `json:"cohesionMin"`
}

func DefaultWeights() Weights {
	return Weights{
		AuthorExact:      15,
		AuthorPartial:    10,
		Title:            8,
		TitleTechnical:   3,
		ContentSingle:    1,
		ContentFew:       3,
		ContentMany:      5,
		ContentTechnical: 2,
		ContentFewMin:    2,
		ContentManyMin:   5,
		Cohesion:         5,
		CohesionMin:      3,
	}
}

// Result is one ranked document
type Result struct {
	Document models.Document
	Score    float64
	// Matched lists the keywords that hit, in keyword order
	Matched []string

	authorExact bool
}

type keyword struct {
	text      string
	fold      string
	technical bool
}

func (e *Engine) keywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		f := foldKey(w)
		if runeLen(f) < 2 {
			continue
		}
		out = append(out, keyword{text: w, fold: f, technical: e.tables.IsTechnical(w)})
	}
	return out
}

// scoreKeyword ranks docs against the keywords. query is the raw query text
// used for the exact author test.
func (e *Engine) scoreKeyword(docs []models.Document, query string, words []string) []Result {
	kws := e.keywords(words)
	w := e.weights
	q := squash(foldKey(query))

	results := make([]Result, 0)
	for _, d := range docs {
		r := Result{Document: d}
		hit := make(map[string]bool)
		mark := func(k keyword) {
			if !hit[k.fold] {
				hit[k.fold] = true
				r.Matched = append(r.Matched, k.text)
			}
		}

		if d.Author != "" {
			author := squash(foldKey(d.Author))
			if runeLen(author) >= 2 && strings.Contains(q, author) {
				r.Score += w.AuthorExact
				r.authorExact = true
			} else {
				for _, k := range kws {
					if strings.Contains(author, squash(k.fold)) {
						r.Score += w.AuthorPartial
						mark(k)
						break
					}
				}
			}
		}

		title := foldKey(d.DisplayTitle())
		for _, k := range kws {
			if !strings.Contains(title, k.fold) {
				continue
			}
			r.Score += w.Title
			if k.technical {
				r.Score += w.TitleTechnical
			}
			mark(k)
		}

		if d.Content != "" {
			content := foldKey(d.Content)
			for _, k := range kws {
				n := strings.Count(content, k.fold)
				if n == 0 {
					continue
				}
				switch {
				case n >= w.ContentManyMin:
					r.Score += w.ContentMany
				case n >= w.ContentFewMin:
					r.Score += w.ContentFew
				default:
					r.Score += w.ContentSingle
				}
				if k.technical {
					r.Score += w.ContentTechnical
				}
				mark(k)
			}
		}

		if w.CohesionMin > 0 && len(hit) >= w.CohesionMin {
			r.Score += w.Cohesion
		}

		if r.Score > 0 {
			results = append(results, r)
		}
	}

	rankResults(results)
	return results
}

// rankResults sorts exact author matches first, then by score. Ties keep the
// newer upload first.
func rankResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.authorExact != b.authorExact {
			return a.authorExact
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Document.UploadedAt.After(b.Document.UploadedAt)
	})
}

func topK(results []Result, k int) []Result {
	if k > 0 && len(results) > k {
		return results[:k]
	}
	return results
}
