package notify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/stacklok/catalog-watcher/internal/catalog"
)

const (
	// SynopsisLimit is the longest synopsis, in runes, placed in a notification
	SynopsisLimit = 350

	embedColor = 0xF06292
)

var lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>\n?`)

// Title returns the notification headline for an event
func Title(e Event) string {
	prefix := "New Release"
	if e.Kind == KindUpdated {
		prefix = "New Episode"
	}
	return prefix + " · " + e.Item.DisplayTitle()
}

// CleanSynopsis strips HTML markup and decodes entities, keeping line breaks
func CleanSynopsis(text string) string {
	text = lineBreakTag.ReplaceAllString(text, "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(doc.Text())
}

// Truncate shortens text to at most limit runes, ending with "..." when cut
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// FormatStatus turns "currently_airing" or "Currently Airing" into "Currently Airing"
func FormatStatus(status string) string {
	if status == "" {
		return ""
	}
	parts := strings.FieldsFunc(status, func(r rune) bool {
		return r == '_' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(parts, " "))
}

// FormatSeason renders "Spring 2024", "Spring" or "2024"
func FormatSeason(season string, year *int) string {
	switch {
	case season != "" && year != nil:
		return cases.Title(language.English).String(season) + " " + strconv.Itoa(*year)
	case season != "":
		return cases.Title(language.English).String(season)
	case year != nil:
		return strconv.Itoa(*year)
	default:
		return ""
	}
}

// FormatScore renders a score with one decimal, or "" when absent
func FormatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', 1, 64)
}

// FormatEpisodes renders the total episode count, or "-" when unknown
func FormatEpisodes(episodes *int) string {
	if episodes == nil {
		return "-"
	}
	return strconv.Itoa(*episodes)
}

// embedField is one name/value pair of a rich notification
type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func eventFields(e Event) []embedField {
	item := e.Item
	var fields []embedField
	add := func(name, value string, inline bool) {
		if value != "" {
			fields = append(fields, embedField{Name: name, Value: value, Inline: inline})
		}
	}

	add("Status", FormatStatus(item.Status), true)
	add("Format", item.Type, true)
	add("Season", FormatSeason(item.Season, item.Year), true)
	add("Total Episodes", FormatEpisodes(item.Episodes), true)
	add("Score", FormatScore(item.Score), true)
	if e.ProgressNumber != nil {
		add("Latest Episode", "Episode "+strconv.Itoa(*e.ProgressNumber), false)
	}
	add("Broadcast", item.Broadcast.String, false)
	return fields
}

func synopsis(item catalog.Item) string {
	return Truncate(CleanSynopsis(item.Synopsis), SynopsisLimit)
}
