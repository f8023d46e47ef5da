package erasure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// EventTypeErasure is the notification kind that triggers deletions.
const EventTypeErasure = "RightToErasureRequest"

// ErrMalformedPayload rejects a body that is not a recognizable notification.
var ErrMalformedPayload = errors.New("erasure: malformed payload")

// Notification is a parsed webhook body. UserID and GameIDs are only set for erasure events.
type Notification struct {
	EventType string
	Erasure   bool
	UserID    string
	GameIDs   []string
}

// ParsePayload interprets a webhook body. Duplicate and unknown game ids are kept as-is.
func ParsePayload(body []byte) (Notification, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return Notification{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}

	var eventType string
	rawType, ok := envelope["EventType"]
	if !ok || json.Unmarshal(rawType, &eventType) != nil {
		return Notification{}, fmt.Errorf("%w: EventType must be a string", ErrMalformedPayload)
	}
	out := Notification{EventType: eventType}
	if eventType != EventTypeErasure {
		return out, nil
	}
	out.Erasure = true

	var eventPayload map[string]json.RawMessage
	rawPayload, ok := envelope["EventPayload"]
	if !ok || json.Unmarshal(rawPayload, &eventPayload) != nil || eventPayload == nil {
		return Notification{}, fmt.Errorf("%w: EventPayload must be an object", ErrMalformedPayload)
	}

	userID, errUser := positiveInteger(eventPayload["UserId"])
	if errUser != nil {
		return Notification{}, fmt.Errorf("%w: UserId: %v", ErrMalformedPayload, errUser)
	}
	out.UserID = userID

	rawGames, ok := eventPayload["GameIds"]
	if !ok {
		return Notification{}, fmt.Errorf("%w: GameIds is required", ErrMalformedPayload)
	}
	var games []json.RawMessage
	if err := json.Unmarshal(rawGames, &games); err != nil || games == nil {
		return Notification{}, fmt.Errorf("%w: GameIds must be an array", ErrMalformedPayload)
	}
	out.GameIDs = make([]string, 0, len(games))
	for i, rawGame := range games {
		gameID, errGame := positiveInteger(rawGame)
		if errGame != nil {
			return Notification{}, fmt.Errorf("%w: GameIds[%d]: %v", ErrMalformedPayload, i, errGame)
		}
		out.GameIDs = append(out.GameIDs, gameID)
	}
	return out, nil
}

// positiveInteger reads a JSON number that must be an integer above zero and returns its
// decimal form.
func positiveInteger(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return "", err
	}
	num, ok := value.(json.Number)
	if !ok {
		return "", errors.New("must be a number")
	}
	parsed, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		return "", errors.New("must be an integer")
	}
	if parsed <= 0 {
		return "", errors.New("must be positive")
	}
	return strconv.FormatInt(parsed, 10), nil
}
