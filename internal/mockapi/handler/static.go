package handler

import (
	"net/http"
	"strings"
)

// silentFrame is one MPEG-1 Layer III frame header followed by padding. Enough
// for a player to recognise the file type.
var silentFrame = append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 413)...)

// NewAudioHandler returns GET /static/audio/{file}. Every .mp3 name resolves
// to the same silent frame.
func NewAudioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".mp3") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(silentFrame)
	}
}
