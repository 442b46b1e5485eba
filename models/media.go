package models

const (
	// MediaTypeMovie identifies movie entries in catalog responses and store rows.
	MediaTypeMovie = "movie"
	// MediaTypeTV identifies series entries in catalog responses and store rows.
	MediaTypeTV = "tv"
)

// Genre is a catalog genre used for filter UIs and row titles.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CastMember is a credited cast entry on a detail response.
type CastMember struct {
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// Video is a trailer or clip attached to a detail response.
type Video struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// MediaItem is a single catalog entry. Movies carry Title/ReleaseDate,
// series carry Name/FirstAirDate; everything else is common. The catalog
// owns this data, it is read-only within a request.
type MediaItem struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	BackdropPath string  `json:"backdrop_path,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	MediaType    string  `json:"media_type,omitempty"`

	Genres  []Genre `json:"genres,omitempty"`
	Credits *struct {
		Cast []CastMember `json:"cast"`
	} `json:"credits,omitempty"`
	Videos *struct {
		Results []Video `json:"results"`
	} `json:"videos,omitempty"`
	Similar *struct {
		Results []MediaItem `json:"results"`
	} `json:"similar,omitempty"`
}

// DisplayTitle returns the movie title or series name, whichever is set.
func (m MediaItem) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// Year returns the four digit release year, or empty when unknown.
func (m MediaItem) Year() string {
	date := m.ReleaseDate
	if date == "" {
		date = m.FirstAirDate
	}
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// Trailer returns the first attached video of type "Trailer", if any.
func (m MediaItem) Trailer() *Video {
	if m.Videos == nil {
		return nil
	}
	for i := range m.Videos.Results {
		if m.Videos.Results[i].Type == "Trailer" {
			return &m.Videos.Results[i]
		}
	}
	return nil
}

// EnrichedMediaItem is a MediaItem merged with the acting user's relation
// facts. Derived per request, never persisted.
type EnrichedMediaItem struct {
	MediaItem
	UserStatus *Status `json:"user_status"`
	UserRating *int    `json:"user_rating,omitempty"`
}
