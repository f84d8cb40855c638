package retrieval

import (
	"testing"

	"lab-dashboard/models"

	"github.com/stretchr/testify/assert"
)

func TestInferAuthor(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		name     string
		filename string
		content  string
		want     string
	}{
		{"bracket", "[小野]卒業論文.pdf", "", "小野"},
		{"full width bracket", "修士論文（佐藤花子）最終版.pdf", "", "佐藤花子"},
		{"bracket stop word ignored", "【最終版】田中一郎_卒論.pdf", "", "田中一郎"},
		{"filename tokens longest wins", "卒論_田中太郎_最終版.pdf", "", "田中太郎"},
		{"glued stop word", "小野卒論.pdf", "", "小野"},
		{"only stop words", "卒業論文_最終版.pdf", "", ""},
		{"author label", "report.pdf", "題目: 睡眠と記憶\n著者：佐藤 花子\n所属: 情報学部", "佐藤 花子"},
		{"english label", "draft.pdf", "Title: Gaze\nAuthor: Hanako Sato\n", "Hanako Sato"},
		{"honorific marker", "notes.pdf", "情報学部 山田さんの発表資料", "山田"},
		{"student id marker", "notes.pdf", "鈴木健 学籍番号 12345", "鈴木健"},
		{"nothing", "notes.pdf", "no name here", ""},
		{"ascii filename", "final_thesis.pdf", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferAuthor(tt.filename, tt.content, tables))
		})
	}
}

func TestInferAuthorLabelBeyondScanWindow(t *testing.T) {
	content := make([]rune, AuthorScanRunes)
	for i := range content {
		content[i] = 'x'
	}
	got := InferAuthor("notes.pdf", string(content)+"著者: 小野", DefaultTables())
	assert.Empty(t, got)
}

func TestInferType(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, models.TypeThesis, InferType("小野_卒論.pdf", tables))
	assert.Equal(t, models.TypeThesis, InferType("修士論文_佐藤.pdf", tables))
	assert.Equal(t, models.TypeThesis, InferType("Master_Thesis_v2.pdf", tables))
	assert.Equal(t, models.TypePaper, InferType("学会予稿_2024.pdf", tables))
	assert.Equal(t, models.TypePaper, InferType("journal-paper.pdf", tables))
	assert.Equal(t, models.TypeDocument, InferType("ゼミ資料.pdf", tables))
	assert.Equal(t, models.TypeDocument, InferType("newspaper_clip.pdf", tables))
}
