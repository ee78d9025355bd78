package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// FolderResolver resolves a slash separated folder path to a folder ID.
type FolderResolver interface {
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

// SyncTarget names the input files to fetch and where to put them.
type SyncTarget struct {
	DefaultFolderID string
	DestDir         string
	Names           []string
}

type Handler struct {
	source     FileSource
	resolver   FolderResolver
	downloader *Downloader
	target     SyncTarget
}

func NewHandler(service *Service, target SyncTarget) *Handler {
	return newHandler(service, service, target)
}

func newHandler(source FileSource, resolver FolderResolver, target SyncTarget) *Handler {
	return &Handler{
		source:     source,
		resolver:   resolver,
		downloader: NewDownloader(source),
		target:     target,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/sync", h.SyncInputs).Methods("POST")
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")

	if folderPath := query.Get("path"); folderPath != "" {
		var err error
		folderID, err = h.resolver.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) SyncInputs(w http.ResponseWriter, r *http.Request) {
	folderID := r.URL.Query().Get("folderId")
	if folderID == "" {
		folderID = h.target.DefaultFolderID
	}
	if folderID == "" {
		http.Error(w, "folderId parameter is required", http.StatusBadRequest)
		return
	}

	paths, err := h.downloader.DownloadInputs(r.Context(), folderID, h.target.DestDir, h.target.Names)
	if errors.Is(err, ErrFileNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("sync failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "files": paths})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
