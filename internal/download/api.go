package download

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ytget/yt-downloader-bot/internal/platform"
)

// HTTP download API
const (
	APIPath          = "/download"
	APIMaxBodyBytes  = 1 << 16
	BearerPrefix     = "Bearer "
	APIStatusOK      = "ok"
	APIErrorAuth     = "unauthorized"
	APIErrorNoURL    = "missing url"
	APIErrorBadBody  = "bad request"
	APIErrorFetch    = "download_failed"
	APIErrorInternal = "internal_error"
)

// APIRequest is the body of a POST to the download API
type APIRequest struct {
	URL string `json:"url"`
}

// APIResponse is returned by the download API. Files are relative to Dir.
type APIResponse struct {
	Status       string   `json:"status,omitempty"`
	RequestedURL string   `json:"requested_url,omitempty"`
	Dir          string   `json:"dir,omitempty"`
	Files        []string `json:"files,omitempty"`
	Error        string   `json:"error,omitempty"`
	Detail       string   `json:"detail,omitempty"`
}

// APIHandler downloads a URL synchronously on behalf of an HTTP client
// authenticated with a bearer token. Every request gets its own directory
// under root, which is kept for the caller.
type APIHandler struct {
	fetcher Fetcher
	options FetchOptions
	root    string
	token   string
	logger  *slog.Logger
}

// NewAPIHandler creates the download API handler. token must not be empty.
func NewAPIHandler(fetcher Fetcher, options FetchOptions, root, token string, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		fetcher: fetcher,
		options: options,
		root:    root,
		token:   token,
		logger:  logger,
	}
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, APIResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
		return
	}
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, APIResponse{Error: APIErrorAuth})
		return
	}

	var body APIRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, APIMaxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Error: APIErrorBadBody})
		return
	}
	url := strings.TrimSpace(body.URL)
	if !platform.IsValidURL(url) {
		writeJSON(w, http.StatusBadRequest, APIResponse{Error: APIErrorNoURL})
		return
	}

	dir, err := platform.AllocateWorkDir(h.root)
	if err != nil {
		h.logger.Error("api_workdir_failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, APIResponse{Error: APIErrorInternal})
		return
	}

	h.logger.Info("api_download_started", "url", url, "dir", dir)
	_, err = h.fetcher.Fetch(r.Context(), FetchRequest{
		URL:            url,
		OutputTemplate: filepath.Join(dir, OutputTemplateName),
		Options:        h.options,
	}, nil)
	if err != nil {
		h.logger.Warn("api_download_failed", "url", url, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, APIResponse{Error: APIErrorFetch, Detail: Truncate(err.Error(), DiagnosticMaxRunes)})
		return
	}

	produced, err := platform.ListProducedFiles(dir)
	if err != nil {
		h.logger.Error("api_list_failed", "dir", dir, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, APIResponse{Error: APIErrorInternal})
		return
	}
	files := make([]string, 0, len(produced))
	for _, path := range produced {
		files = append(files, filepath.Base(path))
	}

	h.logger.Info("api_download_done", "url", url, "files", len(files))
	writeJSON(w, http.StatusOK, APIResponse{Status: APIStatusOK, RequestedURL: url, Dir: dir, Files: files})
}

func (h *APIHandler) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if h.token == "" || !strings.HasPrefix(header, BearerPrefix) {
		return false
	}
	got := strings.TrimPrefix(header, BearerPrefix)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
