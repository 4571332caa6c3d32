package strava

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// RawActivity is one activity record as decoded from the provider, with
// numbers kept as json.Number
type RawActivity = map[string]any

// Page is one decoded response of the activity listing. Exactly one of
// Records and Fault is meaningful: a fault page carries no records.
type Page struct {
	Number  int
	Status  int
	Records []RawActivity
	Fault   RawActivity
}

// IsFault reports whether the provider answered with a fault object
func (p Page) IsFault() bool {
	return p.Fault != nil
}

// ParsePage decodes a listing response body. An array is a page of records;
// an object is a fault and is kept as served. Anything else is an error.
func ParsePage(status int, body []byte) (Page, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Page{}, fmt.Errorf("failed to decode body with status %d: %w", status, err)
	}

	switch doc := v.(type) {
	case []any:
		records := make([]RawActivity, 0, len(doc))
		for i, item := range doc {
			record, ok := item.(map[string]any)
			if !ok {
				return Page{}, fmt.Errorf("record %d is not an object", i)
			}
			records = append(records, record)
		}
		return Page{Status: status, Records: records}, nil
	case map[string]any:
		return Page{Status: status, Fault: doc}, nil
	default:
		return Page{}, errors.New("body is neither an array nor an object")
	}
}
