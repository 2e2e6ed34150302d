package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/projectlif/liplearn/internal/model"
)

// LoadWords reads one word per line from the provided file path.
// Blank lines and lines starting with # are skipped; words are lowercased.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()

	var words []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !isWord(line) || seen[line] {
			continue
		}
		seen[line] = true
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return words, nil
}

// isWord keeps letter-only tokens.
func isWord(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return word != ""
}

// LoadCustom loads every configured word list into word categories.
// Relative paths resolve against dir.
func LoadCustom(lists map[string]string, dir string) ([]Category, error) {
	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)

	cats := make([]Category, 0, len(names))
	for _, name := range names {
		path := lists[name]
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		words, err := LoadWords(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load word list %s: %w", name, err)
		}
		cat := Category{Name: name, Mode: model.ModeWord}
		for _, w := range words {
			cat.Entries = append(cat.Entries, Entry{ID: w, Difficulty: wordDifficulty(w)})
		}
		cats = append(cats, cat)
	}
	return cats, nil
}
