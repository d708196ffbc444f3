package models

// GenreRow is one ranked row of the discover view: a genre and its first
// filtered page of candidates.
type GenreRow struct {
	GenreID   int     `json:"genre_id"`
	GenreName string  `json:"genre_name"`
	Titles    []Title `json:"titles"`
}

// DiscoverResponse is the discover view payload.
type DiscoverResponse struct {
	User    string     `json:"user"`
	Kind    MediaKind  `json:"kind"`
	Rows    []GenreRow `json:"rows"`
	Rewatch []Title    `json:"rewatch"`
}

// LoadMoreRequest drives the incremental "load more" flow for one genre
// row. Changing any filter field under the same session id resets the
// accumulated page cache.
type LoadMoreRequest struct {
	SessionID   string `json:"session_id"`
	Kind        string `json:"kind"`
	GenreID     int    `json:"genre_id"`
	ProviderIDs []int  `json:"provider_ids"`
	Sort        string `json:"sort"`
}

// LoadMoreResponse returns the newly appended titles and the session
// state after the merge. State "exhausted" tells the client to stop
// auto-requesting pages for this filter combination.
type LoadMoreResponse struct {
	SessionID string  `json:"session_id"`
	State     string  `json:"state"`
	ToAppend  []Title `json:"to_append"`
}

// LogRequest logs one title for one or more household profiles in a
// single submit, one record per (profile, rating) pair.
type LogRequest struct {
	TitleID   int            `json:"title_id"`
	Kind      string         `json:"kind"`
	TitleName string         `json:"title"`
	PosterRef string         `json:"poster_ref"`
	GenreIDs  []int          `json:"genre_ids"`
	Ratings   map[string]int `json:"ratings"`
}

// HideRequest marks a title as never-show-again for a user.
type HideRequest struct {
	TitleID int    `json:"title_id"`
	Kind    string `json:"kind"`
}

// CreateProfileRequest creates a household profile.
type CreateProfileRequest struct {
	Name       string   `json:"name"`
	SeedGenres []string `json:"seed_genres"`
	SeedTitles []string `json:"seed_titles"`
}
