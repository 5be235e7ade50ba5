package sse

import (
	"encoding/json"
	"strings"
)

// IsTerminal reports whether ev ends a relay stream: the typed
// {"done":true} frame, the legacy [DONE] literal, or an error frame.
func IsTerminal(ev *Event) bool {
	if ev == nil {
		return false
	}
	f, err := DecodeFrame(ev)
	if err != nil {
		return false
	}
	return f.Done || f.Error != ""
}

// DecodeFrame decodes the data of ev as a relay frame. The legacy [DONE]
// literal decodes as a Frame with only Done set.
func DecodeFrame(ev *Event) (Frame, error) {
	data := strings.TrimSpace(ev.Data)
	if data == DoneSentinel {
		return Frame{Done: true}, nil
	}

	var f Frame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
