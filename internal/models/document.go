package models

import "time"

// Metadata describes where a RawDocument came from.
type Metadata struct {
	Origin    string     `json:"origin" msgpack:"origin"`
	Timestamp *time.Time `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
}

// RawDocument is one page, section or file produced by a loader.
type RawDocument struct {
	Content  string   `json:"content" msgpack:"content"`
	Metadata Metadata `json:"metadata" msgpack:"metadata"`
}

// Chunk is a bounded slice of a RawDocument.
type Chunk struct {
	Text      string     `json:"text" msgpack:"text"`
	Source    string     `json:"source" msgpack:"source"`
	Timestamp *time.Time `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	Index     int        `json:"index" msgpack:"index"`
	Offset    int        `json:"offset" msgpack:"offset"`
}

// ScoredAnswer is a single chunk's answer to a site question.
type ScoredAnswer struct {
	Text      string     `json:"text" msgpack:"text"`
	Source    string     `json:"source" msgpack:"source"`
	Timestamp *time.Time `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	Score     int        `json:"score" msgpack:"score"`
}

// SiteAnswer is the aggregated answer for a site question.
type SiteAnswer struct {
	Text       string         `json:"text" msgpack:"text"`
	Source     string         `json:"source" msgpack:"source"`
	Candidates []ScoredAnswer `json:"candidates" msgpack:"candidates"`
}
