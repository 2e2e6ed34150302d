// Package catalog lists the practice categories and their entries.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/projectlif/liplearn/internal/model"
)

// Entry is one practicable syllable or word.
type Entry struct {
	ID          string
	Description string
	Difficulty  int
}

// Category groups entries that share a prediction model.
type Category struct {
	Name    string
	Mode    model.Mode
	Entries []Entry
}

// Labels returns the entry ids in catalog order.
func (c Category) Labels() []string {
	out := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.ID)
	}
	return out
}

const (
	defaultSyllableCategory = "vowels"
	defaultWordCategory     = "common"
)

var vowelHints = map[string]Entry{
	"a": {ID: "a", Description: "Open your mouth wide, drop your jaw, and let the sound flow naturally.", Difficulty: 1},
	"e": {ID: "e", Description: "Slightly open your mouth, corners of the mouth slightly pulled.", Difficulty: 1},
	"i": {ID: "i", Description: "Smile slightly, mouth almost closed.", Difficulty: 2},
	"o": {ID: "o", Description: "Round your lips into a circle with a moderate opening.", Difficulty: 2},
	"u": {ID: "u", Description: "Pucker your lips tightly with a small opening.", Difficulty: 3},
}

var consonantHints = map[string]struct {
	onset      string
	difficulty int
}{
	"b": {"Press lips together, then release with a puff of air", 2},
	"d": {"Touch tongue tip behind the teeth, then release", 3},
	"g": {"Raise the back of the tongue, then release", 3},
	"k": {"Back of tongue touches the soft palate, then releases", 3},
	"l": {"Lift the tongue tip to the ridge behind the teeth", 2},
	"m": {"Close the lips and hum briefly", 1},
	"n": {"Tongue tip behind the teeth with lips apart", 2},
	"p": {"Press lips together and release sharply without voice", 2},
	"s": {"Teeth nearly closed, lips relaxed", 2},
	"t": {"Tap the tongue tip behind the teeth without voice", 3},
}

var wordCategories = map[string][]string{
	"common":    {"bahay", "buhay", "araw", "gabi", "tubig", "pagkain", "mahal", "salita", "bata", "tao"},
	"greetings": {"kumusta", "salamat", "paalam", "oo", "hindi", "paumanhin", "magandang", "umaga"},
}

var builtin = buildBuiltin()

func buildBuiltin() []Category {
	vowels := []string{"a", "e", "i", "o", "u"}
	cats := []Category{{Name: defaultSyllableCategory, Mode: model.ModeSyllable}}
	for _, v := range vowels {
		cats[0].Entries = append(cats[0].Entries, vowelHints[v])
	}

	consonants := make([]string, 0, len(consonantHints))
	for c := range consonantHints {
		consonants = append(consonants, c)
	}
	sort.Strings(consonants)
	for _, c := range consonants {
		hint := consonantHints[c]
		cat := Category{Name: c, Mode: model.ModeSyllable}
		for _, v := range vowels {
			cat.Entries = append(cat.Entries, Entry{
				ID:          c + v,
				Description: fmt.Sprintf("%s, opening to the %q position.", hint.onset, v),
				Difficulty:  max(hint.difficulty, vowelHints[v].Difficulty),
			})
		}
		cats = append(cats, cat)
	}

	for _, name := range []string{defaultWordCategory, "greetings"} {
		cat := Category{Name: name, Mode: model.ModeWord}
		for _, w := range wordCategories[name] {
			cat.Entries = append(cat.Entries, Entry{ID: w, Difficulty: wordDifficulty(w)})
		}
		cats = append(cats, cat)
	}
	return cats
}

func wordDifficulty(word string) int {
	switch n := len([]rune(word)); {
	case n <= 3:
		return 1
	case n <= 5:
		return 2
	default:
		return 3
	}
}

// DefaultCategory returns the category selected after switching to mode.
func DefaultCategory(mode model.Mode) string {
	if mode == model.ModeWord {
		return defaultWordCategory
	}
	return defaultSyllableCategory
}

// Catalog is the set of built-in and custom categories.
type Catalog struct {
	categories []Category
}

// New returns the built-in catalog extended with custom word categories.
// Custom categories replace built-in word categories of the same name.
func New(custom ...Category) *Catalog {
	cats := make([]Category, 0, len(builtin)+len(custom))
	replaced := map[string]bool{}
	for _, c := range custom {
		replaced[strings.ToLower(c.Name)] = true
	}
	for _, c := range builtin {
		if c.Mode == model.ModeWord && replaced[c.Name] {
			continue
		}
		cats = append(cats, c)
	}
	for _, c := range custom {
		c.Name = strings.ToLower(c.Name)
		c.Mode = model.ModeWord
		cats = append(cats, c)
	}
	return &Catalog{categories: cats}
}

// Categories returns the categories of mode, or every category when mode is empty.
func (c *Catalog) Categories(mode model.Mode) []Category {
	var out []Category
	for _, cat := range c.categories {
		if mode == "" || cat.Mode == mode {
			out = append(out, cat)
		}
	}
	return out
}

// Lookup finds a category by mode and name.
func (c *Catalog) Lookup(mode model.Mode, name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, cat := range c.categories {
		if cat.Mode == mode && cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Cycle returns the category after (step 1) or before (step -1) current in mode.
func (c *Catalog) Cycle(mode model.Mode, current string, step int) string {
	cats := c.Categories(mode)
	if len(cats) == 0 {
		return current
	}
	idx := 0
	for i, cat := range cats {
		if cat.Name == current {
			idx = i
			break
		}
	}
	idx = ((idx+step)%len(cats) + len(cats)) % len(cats)
	return cats[idx].Name
}

// Entry looks up the description of id across every category.
func (c *Catalog) Entry(id string) (Entry, bool) {
	id = strings.ToLower(id)
	for _, cat := range c.categories {
		for _, e := range cat.Entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}
