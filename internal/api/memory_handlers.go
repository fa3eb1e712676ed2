package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/campusconnect/internal/memory"
	"github.com/onnwee/campusconnect/internal/middleware"
)

const (
	actionCreateMemory     = "create_memory"
	actionToggleLike       = "toggle_like"
	actionDeleteMemory     = "delete_memory"
	actionArchiveMemory    = "archive_memory"
	actionUpdateVisibility = "update_visibility"
)

// MemoriesFeed handles GET /memories. Anonymous callers see public memories only.
func (h *Handlers) MemoriesFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := h.memories.Feed(r.Context(), viewerID, q.Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, r, err, "Error loading memories.")
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// MemoriesAction handles POST /memories.
func (h *Handlers) MemoriesAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := parseForm(r, h.maxUploadBytes); err != nil {
		badForm(w, r)
		return
	}

	var res ActionResult
	switch action := r.PostForm.Get("action"); action {
	case actionCreateMemory:
		res = h.createMemory(r, userID)
	case actionToggleLike:
		lr, err := h.memories.ToggleLike(r.Context(), r.PostForm.Get("memory_id"), userID)
		if err == nil && r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
			writeJSON(w, r, http.StatusOK, lr)
			return
		}
		switch {
		case err != nil:
			res = fromError(r, action, err, "Error processing like")
		case lr.Liked:
			res = success(action, "Memory liked!", lr)
		default:
			res = success(action, "Like removed", lr)
		}
	default:
		res = unknownAction(action)
	}
	respondAction(w, r, "/memories", res)
}

func (h *Handlers) createMemory(r *http.Request, userID string) ActionResult {
	const action = actionCreateMemory
	in := memory.CreateInput{
		UserID:      userID,
		LocationID:  r.PostForm.Get("location_id"),
		Title:       strings.TrimSpace(r.PostForm.Get("memory_title")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
		Visibility:  r.PostForm.Get("visibility"),
		Tags:        strings.TrimSpace(r.PostForm.Get("tags")),
	}

	file, header, err := r.FormFile("media_file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		return failure(action, ErrCodeBadRequest, "Invalid media upload")
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return failure(action, ErrCodeBadRequest, "Invalid media upload")
		}
		in.Filename = header.Filename
		in.Data = data
	}

	m, err := h.memories.Create(r.Context(), in)
	if err != nil {
		return fromError(r, action, err, "Error creating memory")
	}
	return success(action, fmt.Sprintf(`Memory "%s" created successfully!`, m.Title), m)
}

// MyMemories handles GET /memories/mine.
func (h *Handlers) MyMemories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, err := h.memories.ByUser(r.Context(), userID, q.Get("archived") == "true", q.Get("cursor"))
	if err != nil {
		writeServiceError(w, r, err, "Error loading your memories.")
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// MyMemoriesAction handles POST /memories/mine.
func (h *Handlers) MyMemoriesAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := parseForm(r, h.maxUploadBytes); err != nil {
		badForm(w, r)
		return
	}
	ctx := r.Context()
	memoryID := r.PostForm.Get("memory_id")

	var res ActionResult
	switch action := r.PostForm.Get("action"); action {
	case actionDeleteMemory:
		m, err := h.memories.Delete(ctx, memoryID, userID)
		if err != nil {
			res = fromError(r, action, err, "Error deleting memory")
			break
		}
		res = success(action, fmt.Sprintf(`Memory "%s" deleted successfully!`, m.Title), nil)
	case actionArchiveMemory:
		m, err := h.memories.ToggleArchive(ctx, memoryID, userID)
		if err != nil {
			res = fromError(r, action, err, "Error archiving memory")
			break
		}
		word := "restored"
		if m.Archived {
			word = "archived"
		}
		res = success(action, fmt.Sprintf(`Memory "%s" %s!`, m.Title, word), m)
	case actionUpdateVisibility:
		m, err := h.memories.UpdateVisibility(ctx, memoryID, userID, r.PostForm.Get("visibility"))
		if errors.Is(err, memory.ErrInvalidVisibility) {
			res = failure(action, ErrCodeValidation, "Invalid visibility option")
			break
		}
		if err != nil {
			res = fromError(r, action, err, "Error updating visibility")
			break
		}
		res = success(action, "Memory visibility updated to "+m.Visibility.Display()+"!", m)
	default:
		res = unknownAction(action)
	}
	respondAction(w, r, "/memories/mine", res)
}

// MemoryDetail handles POST /memories/detail.
func (h *Handlers) MemoryDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := parseForm(r, h.maxUploadBytes); err != nil {
		badForm(w, r)
		return
	}
	d, err := h.memories.Detail(r.Context(), r.PostForm.Get("memory_id"), userID)
	if errors.Is(err, memory.ErrCannotView) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Permission denied")
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "Error loading memory details")
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}
