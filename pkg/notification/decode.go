package notification

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate checks the required wire fields (id, kind, createdAt). A shared
// instance is fine: Validator is safe for concurrent use and caches struct
// metadata.
var validate = validator.New()

// DecodeEvent parses a wire payload into an Event.
//
// Unknown fields are ignored for forward compatibility: servers may add
// fields at any time and old clients must keep working. A payload missing a
// required field is rejected so the caller can drop it with a warning
// instead of storing a half-formed event.
func DecodeEvent(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("failed to parse event payload: %w", err)
	}

	if err := validate.Struct(evt); err != nil {
		return Event{}, fmt.Errorf("event payload missing required fields: %w", err)
	}

	return evt, nil
}
