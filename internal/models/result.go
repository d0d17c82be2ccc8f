package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []ScoredChunk `json:"results"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped,omitempty"`
	QueryTime int64         `json:"query_time_ms"`
	Query     string        `json:"query"`
	Mode      SearchMode    `json:"mode"`
	// Corrected is the spelling-corrected query the keyword pass used, if any.
	Corrected string `json:"corrected_query,omitempty"`
}

// Answer is the composed reply to an AskRequest.
type Answer struct {
	Question string        `json:"question"`
	Text     string        `json:"answer"`
	Provider string        `json:"provider"`
	Sources  []ScoredChunk `json:"sources"`
	// Insufficient is set when nothing was retrieved and the model was not called.
	Insufficient bool  `json:"insufficient,omitempty"`
	Elapsed      int64 `json:"elapsed_ms"`
}

// Summary is the reply to a SummarizeRequest.
type Summary struct {
	DocumentID string `json:"document_id,omitempty"`
	Provider   string `json:"provider"`
	Text       string `json:"summary"`
}

// ChunkArtifact is the persisted pre-chunked format exchanged between
// ingestion and indexing.
type ChunkArtifact struct {
	Chunks []ArtifactChunk `json:"chunks"`
}

// ArtifactChunk is one entry of a ChunkArtifact.
type ArtifactChunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts an entry as an object or as a bare content string.
// A numeric id is kept as its decimal text.
func (c *ArtifactChunk) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var content string
		if err := json.Unmarshal(data, &content); err != nil {
			return err
		}
		*c = ArtifactChunk{Content: content}
		return nil
	}
	var raw struct {
		ID      json.RawMessage `json:"id"`
		Content string          `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := artifactID(raw.ID)
	if err != nil {
		return err
	}
	*c = ArtifactChunk{ID: id, Content: raw.Content}
	return nil
}

func artifactID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("chunk id must be a string or a number: %s", raw)
	}
	return n.String(), nil
}
