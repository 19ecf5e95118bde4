package api

import (
	"net/http"
	"strings"

	service "github.com/okian/listeval/internal/app"
)

// AudioDependencies resolves opaque audio tokens to local files.
type AudioDependencies interface {
	AudioPath(token string) (string, bool)
}

// AudioHandler streams catalogued audio files. Raw paths are never
// accepted, so only configured stimuli can be read.
type AudioHandler struct {
	deps AudioDependencies
}

// NewAudioHandler creates a new audio handler.
func NewAudioHandler(deps AudioDependencies) *AudioHandler {
	return &AudioHandler{deps: deps}
}

// HandleAudio handles GET /audio/{token} requests.
func (h *AudioHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, service.AudioRoute)
	path, ok := h.deps.AudioPath(token)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
