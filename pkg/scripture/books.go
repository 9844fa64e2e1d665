// Package scripture holds the static book catalog consulted by the progression engine.
package scripture

import "strings"

type Book struct {
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
}

var books = []Book{
	{"Genesis", 50}, {"Exodus", 40}, {"Leviticus", 27}, {"Numbers", 36}, {"Deuteronomy", 34},
	{"Joshua", 24}, {"Judges", 21}, {"Ruth", 4}, {"1 Samuel", 31}, {"2 Samuel", 24},
	{"1 Kings", 22}, {"2 Kings", 25}, {"1 Chronicles", 29}, {"2 Chronicles", 36}, {"Ezra", 10},
	{"Nehemiah", 13}, {"Esther", 10}, {"Job", 42}, {"Psalms", 150}, {"Proverbs", 31},
	{"Ecclesiastes", 12}, {"Song of Solomon", 8}, {"Isaiah", 66}, {"Jeremiah", 52}, {"Lamentations", 5},
	{"Ezekiel", 48}, {"Daniel", 12}, {"Hosea", 14}, {"Joel", 3}, {"Amos", 9},
	{"Obadiah", 1}, {"Jonah", 4}, {"Micah", 7}, {"Nahum", 3}, {"Habakkuk", 3},
	{"Zephaniah", 3}, {"Haggai", 2}, {"Zechariah", 14}, {"Malachi", 4},
	{"Matthew", 28}, {"Mark", 16}, {"Luke", 24}, {"John", 21}, {"Acts", 28},
	{"Romans", 16}, {"1 Corinthians", 16}, {"2 Corinthians", 13}, {"Galatians", 6}, {"Ephesians", 6},
	{"Philippians", 4}, {"Colossians", 4}, {"1 Thessalonians", 5}, {"2 Thessalonians", 3}, {"1 Timothy", 6},
	{"2 Timothy", 4}, {"Titus", 3}, {"Philemon", 1}, {"Hebrews", 13}, {"James", 5},
	{"1 Peter", 5}, {"2 Peter", 3}, {"1 John", 5}, {"2 John", 1}, {"3 John", 1},
	{"Jude", 1}, {"Revelation", 22},
}

var byName = func() map[string]Book {
	m := make(map[string]Book, len(books))
	for _, b := range books {
		m[strings.ToLower(b.Name)] = b
	}
	return m
}()

// Books returns the catalog in canonical order.
func Books() []Book {
	out := make([]Book, len(books))
	copy(out, books)
	return out
}

// Lookup finds a book by name, ignoring case and surrounding spaces.
func Lookup(name string) (Book, bool) {
	b, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// ChapterCount returns 0 for unknown books.
func ChapterCount(name string) int {
	b, ok := Lookup(name)
	if !ok {
		return 0
	}
	return b.Chapters
}

// ValidChapter reports whether chapter exists in the named book.
func ValidChapter(name string, chapter int) bool {
	count := ChapterCount(name)
	return chapter >= 1 && chapter <= count
}
