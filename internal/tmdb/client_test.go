package tmdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsmith8642/cinematch/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		MinVoteCount: 200,
	})
	return client, srv
}

func TestDiscoverQueryParameters(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"page": 2, "results": []interface{}{}})
	})

	_, err := client.Discover(context.Background(), models.MediaMovie, []int{28, 12}, []int{8, 337}, 2)
	require.NoError(t, err)

	assert.Equal(t, "/discover/movie", gotPath)
	assert.Equal(t, "test-key", gotQuery.Get("api_key"))
	assert.Equal(t, "popularity.desc", gotQuery.Get("sort_by"))
	assert.Equal(t, "200", gotQuery.Get("vote_count.gte"))
	assert.Equal(t, "2", gotQuery.Get("page"))
	// Genres narrow (AND, comma), providers widen (OR, pipe).
	assert.Equal(t, "28,12", gotQuery.Get("with_genres"))
	assert.Equal(t, "8|337", gotQuery.Get("with_watch_providers"))
	assert.Equal(t, "US", gotQuery.Get("watch_region"))
}

func TestDiscoverOmitsProviderParamsWhenUnfiltered(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	})

	_, err := client.Discover(context.Background(), models.MediaTV, []int{18}, nil, 1)
	require.NoError(t, err)

	assert.False(t, gotQuery.Has("with_watch_providers"))
	assert.False(t, gotQuery.Has("watch_region"))
}

func TestDiscoverNormalizesMovieShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":550,"title":"Fight Club","release_date":"1999-10-15",
			 "poster_path":"/poster.jpg","vote_average":8.4,"popularity":61.5,
			 "genre_ids":[18,53]}
		]}`))
	})

	titles, err := client.Discover(context.Background(), models.MediaMovie, []int{18}, nil, 1)
	require.NoError(t, err)
	require.Len(t, titles, 1)

	got := titles[0]
	assert.Equal(t, 550, got.ID)
	assert.Equal(t, models.MediaMovie, got.Kind)
	assert.Equal(t, "Fight Club", got.Name)
	assert.Equal(t, "1999-10-15", got.ReleaseDate)
	assert.Equal(t, "/poster.jpg", got.PosterRef)
	// Native 0-10 score scaled to the canonical 0-100 scale, once.
	assert.InDelta(t, 84.0, got.ExternalRating, 0.0001)
	assert.Equal(t, []int{18, 53}, got.GenreIDs)
}

func TestDiscoverNormalizesTVShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20",
			 "vote_average":8.9,"genre_ids":[18]}
		]}`))
	})

	titles, err := client.Discover(context.Background(), models.MediaTV, []int{18}, nil, 1)
	require.NoError(t, err)
	require.Len(t, titles, 1)

	// TV field names collapse into the same normalized shape.
	got := titles[0]
	assert.Equal(t, models.MediaTV, got.Kind)
	assert.Equal(t, "Breaking Bad", got.Name)
	assert.Equal(t, "2008-01-20", got.ReleaseDate)
	assert.Empty(t, got.PosterRef)
}

func TestSearchMultiDropsOtherMediaTypes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"id":1,"media_type":"movie","title":"A"},
			{"id":2,"media_type":"person","name":"Somebody"},
			{"id":3,"media_type":"tv","name":"B"}
		]}`))
	})

	titles, err := client.SearchMulti(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, titles, 2)
	assert.Equal(t, models.MediaMovie, titles[0].Kind)
	assert.Equal(t, models.MediaTV, titles[1].Kind)
}

func TestGenresBuildsTaxonomy(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/genre/tv/list", r.URL.Path)
		_, _ = w.Write([]byte(`{"genres":[{"id":18,"name":"Drama"},{"id":35,"name":"Comedy"}]}`))
	})

	tax, err := client.Genres(context.Background(), models.MediaTV)
	require.NoError(t, err)

	name, ok := tax.NameOf(18)
	require.True(t, ok)
	assert.Equal(t, "Drama", name)
	id, ok := tax.IDOf("Comedy")
	require.True(t, ok)
	assert.Equal(t, 35, id)
}

func TestWatchProvidersRegionSplit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/550/watch/providers", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":{"US":{
			"flatrate":[{"provider_name":"Netflix","logo_path":"/n.jpg"}],
			"free":[{"provider_name":"Tubi","logo_path":"/t.jpg"}]
		}}}`))
	})

	wp, err := client.WatchProviders(context.Background(), 550, models.MediaMovie)
	require.NoError(t, err)
	require.Len(t, wp.Flatrate, 1)
	assert.Equal(t, "Netflix", wp.Flatrate[0].Name)
	require.Len(t, wp.Free, 1)
	assert.Equal(t, "Tubi", wp.Free[0].Name)
}

func TestWatchProvidersNoAvailability(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{}}`))
	})

	wp, err := client.WatchProviders(context.Background(), 550, models.MediaMovie)
	require.NoError(t, err)
	assert.Empty(t, wp.Flatrate)
	assert.Empty(t, wp.Free)
}

func TestTitleDetailsFlattensGenres(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/550", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":550,"title":"Fight Club","vote_average":8.4,
			"genres":[{"id":18,"name":"Drama"},{"id":53,"name":"Thriller"}]}`))
	})

	got, err := client.TitleDetails(context.Background(), 550, models.MediaMovie)
	require.NoError(t, err)
	assert.Equal(t, []int{18, 53}, got.GenreIDs)
}

func TestFractionalRequestRateStillServes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	t.Cleanup(srv.Close)

	// A rate below one request per second must still allow a burst of
	// one, or every call would wait forever.
	client := NewClient(Config{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerSecond: 0.5,
	})

	_, err := client.Discover(context.Background(), models.MediaMovie, []int{18}, nil, 1)
	assert.NoError(t, err)
}

func TestNonOKStatusIsAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_message":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.Discover(context.Background(), models.MediaMovie, []int{18}, nil, 1)
	assert.Error(t, err)
}
