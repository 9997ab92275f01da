package server

import (
	"encoding/json"
	"net/http"
)

// lineEncoder writes ndjson lines and flushes each one immediately so
// the browser sees events as they happen, not when a buffer fills.
type lineEncoder struct {
	enc     *json.Encoder
	flusher http.Flusher
}

func newLineEncoder(w http.ResponseWriter, f http.Flusher) *lineEncoder {
	return &lineEncoder{enc: json.NewEncoder(w), flusher: f}
}

func (l *lineEncoder) write(v any) error {
	if err := l.enc.Encode(v); err != nil {
		return err
	}
	l.flusher.Flush()
	return nil
}
