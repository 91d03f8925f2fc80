package model

// Movie is one entry of the movie catalog.  The client never mutates
// these; they exist so listing endpoints return tagged types instead of
// untyped maps.
type Movie struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Director    string   `json:"director,omitempty"`
	Actors      []string `json:"actors,omitempty"`
	Duration    int      `json:"duration,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Description string   `json:"description,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	ReleaseTime string   `json:"releaseTime,omitempty"`
}

// Show is one scheduled screening of a movie in a room.
type Show struct {
	ID             string  `json:"id"`
	MovieID        string  `json:"movieId,omitempty"`
	MovieTitle     string  `json:"movieTitle"`
	RoomID         string  `json:"roomId,omitempty"`
	RoomName       string  `json:"roomName"`
	StartTime      string  `json:"startTime"`
	BasePrice      float64 `json:"basePrice"`
	AvailableSeats int     `json:"availableSeats"`
	TotalSeats     int     `json:"totalSeats"`
}

// Room is a screening room.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rows int    `json:"rows,omitempty"`
	Cols int    `json:"cols,omitempty"`
}
