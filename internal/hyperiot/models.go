package hyperiot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ProjectID is the platform's opaque project identifier. The API returns it
// as a JSON number, but strings are accepted as well.
type ProjectID string

func (id *ProjectID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: project id is null", ErrMalformedResponse)
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return fmt.Errorf("%w: project id is empty", ErrMalformedResponse)
		}
		*id = ProjectID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: project id %s", ErrMalformedResponse, string(b))
	}
	*id = ProjectID(n.String())
	return nil
}

func (id ProjectID) MarshalJSON() ([]byte, error) {
	if isNumeric(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ProjectID) String() string { return string(id) }

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 && len(s) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Project is one entry of the project cards listing. Raw keeps the full card
// so callers can hand it back untouched.
type Project struct {
	ID   ProjectID       `json:"id"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

func decodeProjects(body []byte) ([]Project, error) {
	var cards []json.RawMessage
	if err := json.Unmarshal(body, &cards); err != nil {
		return nil, fmt.Errorf("%w: project listing is not a JSON array: %v", ErrMalformedResponse, err)
	}

	projects := make([]Project, 0, len(cards))
	for i, card := range cards {
		var fields struct {
			ID   *ProjectID `json:"id"`
			Name *string    `json:"name"`
		}
		if err := json.Unmarshal(card, &fields); err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				return nil, fmt.Errorf("project %d: %w", i, err)
			}
			return nil, fmt.Errorf("%w: project %d: %v", ErrMalformedResponse, i, err)
		}
		if fields.ID == nil {
			return nil, fmt.Errorf("%w: project %d has no id", ErrMalformedResponse, i)
		}
		if fields.Name == nil {
			return nil, fmt.Errorf("%w: project %d has no name", ErrMalformedResponse, i)
		}
		projects = append(projects, Project{ID: *fields.ID, Name: *fields.Name, Raw: card})
	}
	return projects, nil
}
