package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"financas/internal/core"
)

type cardFile struct {
	Card []cardEntry `toml:"card"`
}

type cardEntry struct {
	ID         string         `toml:"id"`
	Name       string         `toml:"name"`
	ClosingDay int            `toml:"closing_day"`
	Overrides  map[string]int `toml:"overrides"`
}

// LoadCardBook reads the card book from a TOML file. An empty path yields a
// book with no cards, so every purchase uses defaultClosingDay.
func LoadCardBook(path string, defaultClosingDay int) (core.CardBook, error) {
	if path == "" {
		return core.NewCardBook(defaultClosingDay), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return core.CardBook{}, fmt.Errorf("open cards file: %w", err)
	}
	defer f.Close()
	return ParseCardBook(f, defaultClosingDay)
}

// ParseCardBook decodes a card book and validates every entry.
func ParseCardBook(r io.Reader, defaultClosingDay int) (core.CardBook, error) {
	var file cardFile
	md, err := toml.NewDecoder(r).Decode(&file)
	if err != nil {
		return core.CardBook{}, fmt.Errorf("decode cards file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return core.CardBook{}, fmt.Errorf("unknown keys in cards file: %v", undecoded)
	}

	var problems []string
	seen := make(map[string]bool)
	cards := make([]core.Card, 0, len(file.Card))
	for i, e := range file.Card {
		id := strings.TrimSpace(e.ID)
		switch {
		case id == "":
			problems = append(problems, fmt.Sprintf("card #%d: id is required", i+1))
			continue
		case seen[id]:
			problems = append(problems, fmt.Sprintf("card %s: duplicate id", id))
			continue
		}
		seen[id] = true

		if e.ClosingDay < 1 || e.ClosingDay > 31 {
			problems = append(problems, fmt.Sprintf("card %s: closing_day %d must be between 1 and 31", id, e.ClosingDay))
		}
		for month, day := range e.Overrides {
			if _, err := core.ParsePeriod(month); err != nil {
				problems = append(problems, fmt.Sprintf("card %s: override key %q is not YYYY-MM", id, month))
			}
			if day < 1 || day > 31 {
				problems = append(problems, fmt.Sprintf("card %s: override %s day %d must be between 1 and 31", id, month, day))
			}
		}

		name := e.Name
		if name == "" {
			name = id
		}
		cards = append(cards, core.Card{ID: id, Name: name, ClosingDay: e.ClosingDay, Overrides: e.Overrides})
	}

	if len(problems) > 0 {
		return core.CardBook{}, fmt.Errorf("invalid cards file:\n- %s", strings.Join(problems, "\n- "))
	}
	return core.NewCardBook(defaultClosingDay, cards...), nil
}
