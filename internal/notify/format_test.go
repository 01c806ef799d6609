package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/catalog-watcher/internal/catalog"
)

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestCleanSynopsis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "A quiet story.", "A quiet story."},
		{"line breaks", "One<br>Two<BR/>\nThree<br />Four", "One\nTwo\nThree\nFour"},
		{"tags", "<p>Hello <i>world</i></p>", "Hello world"},
		{"trim", "  <b></b>  text \n", "text"},
		{"entities", "Rock &amp; Roll &#039;99", "Rock & Roll '99"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, CleanSynopsis(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))

	long := strings.Repeat("百合", 400)
	out := Truncate(long, SynopsisLimit)
	assert.Equal(t, SynopsisLimit, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestFormatters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Currently Airing", FormatStatus("currently_airing"))
	assert.Equal(t, "Finished Airing", FormatStatus("Finished Airing"))
	assert.Equal(t, "", FormatStatus(""))

	assert.Equal(t, "Spring 2024", FormatSeason("spring", intPtr(2024)))
	assert.Equal(t, "Fall", FormatSeason("FALL", nil))
	assert.Equal(t, "2019", FormatSeason("", intPtr(2019)))
	assert.Equal(t, "", FormatSeason("", nil))

	assert.Equal(t, "8.2", FormatScore(floatPtr(8.24)))
	assert.Equal(t, "", FormatScore(nil))

	assert.Equal(t, "12", FormatEpisodes(intPtr(12)))
	assert.Equal(t, "-", FormatEpisodes(nil))
}

func TestTitleAndFields(t *testing.T) {
	t.Parallel()

	item := catalog.Item{
		ID:           7,
		TitleEnglish: "Bloom Into You",
		Type:         "TV",
		Status:       "Currently Airing",
		Season:       "fall",
		Year:         intPtr(2018),
		Episodes:     intPtr(13),
		Score:        floatPtr(8.05),
		Broadcast:    catalog.Broadcast{String: "Fridays at 22:30 (JST)"},
	}

	newEvent := NewEvent(KindNew, item)
	assert.Equal(t, "New Release · Bloom Into You", Title(newEvent))
	assert.Equal(t, "7", newEvent.Identity)
	assert.NotEmpty(t, newEvent.ID.String())
	if assert.NotNil(t, newEvent.ProgressNumber) {
		assert.Equal(t, 13, *newEvent.ProgressNumber)
	}

	updated := NewEvent(KindUpdated, item)
	assert.Equal(t, "New Episode · Bloom Into You", Title(updated))
	assert.NotEqual(t, newEvent.ID, updated.ID)

	fields := eventFields(updated)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Status", "Format", "Season", "Total Episodes", "Score", "Latest Episode", "Broadcast"}, names)
	assert.Equal(t, "Episode 13", fields[5].Value)
	assert.False(t, fields[5].Inline)
	assert.Equal(t, "Fall 2018", fields[2].Value)

	bare := NewEvent(KindNew, catalog.Item{ID: 1})
	assert.Nil(t, bare.ProgressNumber)
	fields = eventFields(bare)
	if assert.Len(t, fields, 1) {
		assert.Equal(t, "Total Episodes", fields[0].Name)
		assert.Equal(t, "-", fields[0].Value)
	}
}
