// Package ingest turns messages published by venue sensor devices into
// readings and hands them to a ReadingSink. Devices publish one JSON document
// per interval over MQTT; the same document may also arrive through Kafka
// when a bridge forwards the device topic.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// ReadingSink persists decoded readings.
type ReadingSink interface {
	SaveReadings(ctx context.Context, readings []models.Reading) error
}

// unknownArtist is what devices report when a track title carries no artist.
const unknownArtist = "Unknown"

// Payload is the JSON document a device publishes. Every section is
// optional; a device without a light sensor simply omits light_level.
type Payload struct {
	DeviceID  string     `json:"deviceId"`
	VenueID   string     `json:"venueId"`
	Timestamp string     `json:"timestamp"`
	Sensors   *Sensors   `json:"sensors,omitempty"`
	Occupancy *Occupancy `json:"occupancy,omitempty"`
	Spotify   *Spotify   `json:"spotify,omitempty"`
}

// Sensors holds environmental measurements.
type Sensors struct {
	SoundLevel         *float64 `json:"sound_level,omitempty"`
	LightLevel         *float64 `json:"light_level,omitempty"`
	IndoorTemperature  *float64 `json:"indoor_temperature,omitempty"`
	OutdoorTemperature *float64 `json:"outdoor_temperature,omitempty"`
	Humidity           *float64 `json:"humidity,omitempty"`
	Pressure           *float64 `json:"pressure,omitempty"`
}

// Occupancy holds door counter state.
type Occupancy struct {
	Current  int `json:"current"`
	Entries  int `json:"entries"`
	Exits    int `json:"exits"`
	Capacity int `json:"capacity,omitempty"`
}

// Spotify holds the currently playing track.
type Spotify struct {
	CurrentSong string  `json:"current_song"`
	Artist      string  `json:"artist,omitempty"`
	AlbumArt    *string `json:"album_art,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 and the zone-less forms some devices
// send, which are taken as UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// SplitSong separates a "Title - Artist" string. Songs without a separator
// keep the whole string as the title and an unknown artist. Device error
// strings (anything starting with "Error") yield ok=false.
func SplitSong(song string) (track, artist string, ok bool) {
	song = strings.TrimSpace(song)
	if song == "" || strings.HasPrefix(song, "Error") {
		return "", "", false
	}
	if title, by, found := strings.Cut(song, " - "); found {
		return strings.TrimSpace(title), strings.TrimSpace(by), true
	}
	return song, unknownArtist, true
}

// Decode parses a device message into a Reading. fallbackVenue is used when
// the payload carries no venue ID (for example when the venue is encoded in
// the topic instead). A missing timestamp is replaced by now. The reading
// gets a fresh ID.
func Decode(data []byte, fallbackVenue string, now time.Time) (models.Reading, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Reading{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	return p.Reading(fallbackVenue, now)
}

// Reading converts the payload into a Reading.
func (p *Payload) Reading(fallbackVenue string, now time.Time) (models.Reading, error) {
	r := models.Reading{
		ID:      uuid.New().String(),
		VenueID: strings.TrimSpace(p.VenueID),
	}
	if r.VenueID == "" {
		r.VenueID = fallbackVenue
	}
	if r.VenueID == "" {
		return models.Reading{}, errors.New("payload has no venue ID")
	}

	if p.Timestamp == "" {
		r.Timestamp = now.UTC()
	} else {
		ts, err := parseTimestamp(p.Timestamp)
		if err != nil {
			return models.Reading{}, err
		}
		r.Timestamp = ts
	}

	if s := p.Sensors; s != nil {
		r.SoundDB = s.SoundLevel
		r.LightLux = s.LightLevel
		r.TemperatureF = s.IndoorTemperature
		r.Humidity = s.Humidity
	}

	if o := p.Occupancy; o != nil {
		r.Entries = o.Entries
		r.Exits = o.Exits
		// Devices derive current as entries minus exits, which goes
		// negative after a missed entry.
		r.Occupancy = max(o.Current, 0)
	}

	if sp := p.Spotify; sp != nil {
		if track, artist, ok := SplitSong(sp.CurrentSong); ok {
			r.Track = track
			r.Artist = artist
			if a := strings.TrimSpace(sp.Artist); a != "" && artist == unknownArtist {
				r.Artist = a
			}
		}
	}

	if err := r.Validate(); err != nil {
		return models.Reading{}, fmt.Errorf("invalid reading: %w", err)
	}
	return r, nil
}

// VenueFromTopic extracts the venue ID from a topic of the form
// "<prefix>/<venue>". It returns "" when the topic has no venue segment.
func VenueFromTopic(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 || i == len(topic)-1 {
		return ""
	}
	return topic[i+1:]
}
