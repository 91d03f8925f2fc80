package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/cinema-booking-client/internal/model"
)

// The catalog endpoints are read-only pass-throughs.  They carry no
// client-side logic, but each still returns an explicit result type so
// nothing crosses the system boundary untyped.

// ListMovies returns the movie catalog.
func (c *Client) ListMovies(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := c.t.Do(ctx, http.MethodGet, "/api/movies", nil, nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// ListShows returns scheduled shows, optionally filtered by movie.
func (c *Client) ListShows(ctx context.Context, movieID string) ([]model.Show, error) {
	var q url.Values
	if movieID != "" {
		q = url.Values{"movieId": {movieID}}
	}
	var shows []model.Show
	if err := c.t.Do(ctx, http.MethodGet, "/api/shows", q, nil, &shows); err != nil {
		return nil, err
	}
	return shows, nil
}

// ListRooms returns the screening rooms.
func (c *Client) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := c.t.Do(ctx, http.MethodGet, "/api/rooms", nil, nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
