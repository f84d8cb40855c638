package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"lab-dashboard/internal/retrieval"
	"lab-dashboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct {
	resets int
	force  bool
	limit  int
	err    error
}

func (f *fakeCorpus) ResetCorpus(context.Context) error {
	f.resets++
	return f.err
}

func (f *fakeCorpus) EnsureVectors(_ context.Context, force bool, limit int) (int, error) {
	f.force, f.limit = force, limit
	return 3, f.err
}

type fakeSearch struct {
	last retrieval.Query
}

func (f *fakeSearch) Search(_ context.Context, q retrieval.Query) retrieval.Outcome {
	f.last = q
	return retrieval.Outcome{
		Method: retrieval.MethodAuthor,
		Results: []retrieval.Result{{
			Document: models.Document{ID: "d1", Title: "強化学習の研究", Author: "小野"},
			Score:    4.5,
		}},
	}
}

func run(t *testing.T, corpus CorpusService, search SearchService, args ...string) (string, error) {
	t.Helper()
	old1, old2 := corpusService, searchService
	SetServices(corpus, search)
	t.Cleanup(func() {
		SetServices(old1, old2)
		rootCmd.SetArgs(nil)
		ensureForce, ensureLimit = false, 0
		searchMode, searchNoCache, searchJSON = string(retrieval.ModeKeyword), false, false
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestResetCmd(t *testing.T) {
	corpus := &fakeCorpus{}
	out, err := run(t, corpus, nil, "reset")

	require.NoError(t, err)
	assert.Equal(t, 1, corpus.resets)
	assert.Contains(t, out, "Corpus reset.")
}

func TestResetCmdError(t *testing.T) {
	_, err := run(t, &fakeCorpus{err: errors.New("mongo down")}, nil, "reset")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo down")
}

func TestCommandsRequireServices(t *testing.T) {
	_, err := run(t, nil, nil, "reset")
	assert.EqualError(t, err, "corpus service not configured")

	_, err = run(t, nil, nil, "search", "x")
	assert.EqualError(t, err, "search service not configured")
}

func TestEnsureCmdFlags(t *testing.T) {
	corpus := &fakeCorpus{}
	out, err := run(t, corpus, nil, "ensure-vectors", "--force", "--limit", "7")

	require.NoError(t, err)
	assert.True(t, corpus.force)
	assert.Equal(t, 7, corpus.limit)
	assert.Contains(t, out, "Indexed 3 document(s).")
}

func TestSearchCmdRequiresQuery(t *testing.T) {
	_, err := run(t, nil, &fakeSearch{}, "search")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmdPassesMode(t *testing.T) {
	search := &fakeSearch{}
	out, err := run(t, nil, search, "search", "--mode", "semantic", "--no-cache", "小野さんの研究")

	require.NoError(t, err)
	assert.Equal(t, retrieval.ModeSemantic, search.last.Mode)
	assert.True(t, search.last.NoCache)
	assert.Equal(t, "小野さんの研究", search.last.Text)
	assert.Contains(t, out, "Results (author):")
	assert.Contains(t, out, "[1] 強化学習の研究 (4.50)")
	assert.Contains(t, out, "Author: 小野")
}

func TestSearchCmdJSON(t *testing.T) {
	out, err := run(t, nil, &fakeSearch{}, "search", "--json", "q")
	require.NoError(t, err)

	var got searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "author", got.Method)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "d1", got.Results[0].ID)
}
