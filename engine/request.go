package engine

import (
	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/document"
)

// Request type discriminators reported in responses and analytics.
const (
	RequestSingle = "single"
	RequestBatch  = "batch"
)

// Change is one find-and-replace pair inside a request.
type Change struct {
	TextToReplace string `json:"textToReplace"`
	NewText       string `json:"newText"`
}

// Request is the change endpoint's body: either a single pair or a batch,
// discriminated by the presence of the changes field. The two shapes are
// mutually exclusive; requests mixing fields are rejected.
type Request struct {
	TextToReplace *string  `json:"textToReplace,omitempty"`
	NewText       *string  `json:"newText,omitempty"`
	Changes       []Change `json:"changes,omitempty"`
}

// normalize validates the request shape and sizes and flattens it into an
// ordered op list plus the request type.
func (r *Request) normalize() ([]Change, string, error) {
	batch := r.Changes != nil

	if batch {
		if r.TextToReplace != nil || r.NewText != nil {
			return nil, "", common.BadRequest("request mixes single and batch fields")
		}
		if len(r.Changes) == 0 {
			return nil, "", common.BadRequest("changes must not be empty")
		}
		for i, ch := range r.Changes {
			if err := validateChange(ch, i); err != nil {
				return nil, "", err
			}
		}
		return r.Changes, RequestBatch, nil
	}

	if r.TextToReplace == nil || r.NewText == nil {
		return nil, "", common.BadRequest("textToReplace and newText are required")
	}
	single := Change{TextToReplace: *r.TextToReplace, NewText: *r.NewText}
	if err := validateChange(single, 0); err != nil {
		return nil, "", err
	}
	return []Change{single}, RequestSingle, nil
}

func validateChange(ch Change, index int) error {
	if len(ch.TextToReplace) > document.MaxBodyBytes {
		return common.BadRequest("textToReplace exceeds maximum size").WithDetails("index", index)
	}
	if len(ch.NewText) > document.MaxBodyBytes {
		return common.BadRequest("newText exceeds maximum size").WithDetails("index", index)
	}
	return nil
}
