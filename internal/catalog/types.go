package catalog

import "strconv"

// Item is a single anime record as returned by the Jikan v4 API.
// Only ID and Episodes are examined by the sync engine; the rest is passed
// through to notification sinks and the API.
type Item struct {
	ID            int        `json:"mal_id"`
	URL           string     `json:"url,omitempty"`
	Images        Images     `json:"images"`
	Title         string     `json:"title,omitempty"`
	TitleEnglish  string     `json:"title_english,omitempty"`
	TitleJapanese string     `json:"title_japanese,omitempty"`
	Titles        []AltTitle `json:"titles,omitempty"`
	Type          string     `json:"type,omitempty"`
	Episodes      *int       `json:"episodes"`
	Status        string     `json:"status,omitempty"`
	Score         *float64   `json:"score,omitempty"`
	Synopsis      string     `json:"synopsis,omitempty"`
	Season        string     `json:"season,omitempty"`
	Year          *int       `json:"year,omitempty"`
	Broadcast     Broadcast  `json:"broadcast"`
}

// Images holds poster URLs per image format
type Images struct {
	JPG ImageSet `json:"jpg"`
}

// ImageSet holds the poster URLs of one image format
type ImageSet struct {
	ImageURL      string `json:"image_url,omitempty"`
	LargeImageURL string `json:"large_image_url,omitempty"`
}

// AltTitle is one entry of the alternative titles list
type AltTitle struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Broadcast describes the airing schedule
type Broadcast struct {
	String string `json:"string,omitempty"`
}

// Key returns the identity used to correlate the item across cycles
func (i Item) Key() string {
	return strconv.Itoa(i.ID)
}

// DisplayTitle picks the best available title for display
func (i Item) DisplayTitle() string {
	switch {
	case i.TitleEnglish != "":
		return i.TitleEnglish
	case i.Title != "":
		return i.Title
	case i.TitleJapanese != "":
		return i.TitleJapanese
	}
	for _, t := range i.Titles {
		if t.Title != "" {
			return t.Title
		}
	}
	return "Anime"
}

// PosterURL returns the large poster, falling back to the regular one
func (i Item) PosterURL() string {
	if i.Images.JPG.LargeImageURL != "" {
		return i.Images.JPG.LargeImageURL
	}
	return i.Images.JPG.ImageURL
}

// Page is one page of catalog results
type Page struct {
	Items           []Item
	CurrentPage     int
	LastVisiblePage int
	HasNextPage     bool
}

// listResponse is the Jikan list envelope
type listResponse struct {
	Data       []Item     `json:"data"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	CurrentPage     int  `json:"current_page"`
}

// errorResponse is the Jikan error envelope
type errorResponse struct {
	Status    any    `json:"status"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	ReportURL string `json:"report_url"`
}

func (e *errorResponse) detail() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Error != "":
		return e.Message + ": " + e.Error
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}
