package scripture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogShape(t *testing.T) {
	all := Books()

	assert.Len(t, all, 66)
	assert.Equal(t, "Genesis", all[0].Name)
	assert.Equal(t, "Revelation", all[len(all)-1].Name)

	total := 0
	for _, b := range all {
		total += b.Chapters
	}
	assert.Equal(t, 1189, total)
}

func TestLookup(t *testing.T) {
	b, ok := Lookup("  ruth ")
	assert.True(t, ok)
	assert.Equal(t, "Ruth", b.Name)
	assert.Equal(t, 4, b.Chapters)

	_, ok = Lookup("Maccabees")
	assert.False(t, ok)
}

func TestValidChapter(t *testing.T) {
	tests := []struct {
		Desc    string
		Book    string
		Chapter int
		Want    bool
	}{
		{Desc: "first chapter", Book: "Jude", Chapter: 1, Want: true},
		{Desc: "past the end", Book: "Jude", Chapter: 2, Want: false},
		{Desc: "zero", Book: "Psalms", Chapter: 0, Want: false},
		{Desc: "last psalm", Book: "Psalms", Chapter: 150, Want: true},
		{Desc: "unknown book", Book: "Enoch", Chapter: 1, Want: false},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			assert.Equal(t, tc.Want, ValidChapter(tc.Book, tc.Chapter))
		})
	}
}
