package domain

import (
	"time"

	"github.com/google/uuid"
)

// Mode is the input modality of a query.
type Mode string

// Query input modes.
const (
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

// Query is a single incoming question. Immutable once created.
type Query struct {
	ID          string
	Text        string
	Mode        Mode
	Audio       []byte // raw audio for voice mode, nil otherwise
	RequestedAt time.Time
}

// NewQuery creates a text query.
func NewQuery(text string) Query {
	return Query{
		ID:          uuid.NewString(),
		Text:        text,
		Mode:        ModeText,
		RequestedAt: time.Now().UTC(),
	}
}

// NewVoiceQuery creates a voice query carrying raw audio to be transcribed.
func NewVoiceQuery(audio []byte) Query {
	return Query{
		ID:          uuid.NewString(),
		Mode:        ModeVoice,
		Audio:       audio,
		RequestedAt: time.Now().UTC(),
	}
}

// WithText returns a copy of the query with transcribed text filled in.
func (q Query) WithText(text string) Query {
	q.Text = text
	return q
}
