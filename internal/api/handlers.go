package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/catalog"
	"github.com/starford/roster/internal/checksum"
	"github.com/starford/roster/internal/thumbnail"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	engine *catalog.Engine
	thumbs thumbnail.Resolver
}

// NewHandler creates a new Handler.
func NewHandler(engine *catalog.Engine, thumbs thumbnail.Resolver) *Handler {
	return &Handler{engine: engine, thumbs: thumbs}
}

func characterID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("%w: id must be an integer", apperr.ErrValidation)
	}
	return id, nil
}

func (h *Handler) writeState(w http.ResponseWriter, s catalog.State) {
	writeJSON(w, http.StatusOK, toStateResponse(h.thumbs, s))
}

// ListCharacters handles GET /api/characters.
//
//	@Summary		Load a page of characters (local first, then remote)
//	@Tags			characters
//	@Produce		json
//	@Param			q		query		string	false	"Name filter"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Raw offset"
//	@Param			page	query		int		false	"1-based page, wins over offset"
//	@Success		200		{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/characters [get]
func (h *Handler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("q") {
		h.engine.SetSearchTerm(q.Get("q"))
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		h.engine.SetLimit(v)
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		h.engine.GoToPage(v)
	} else if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		h.engine.SetOffset(v)
	}
	h.writeState(w, h.engine.LoadPage(r.Context()))
}

// LoadMore handles POST /api/characters/more.
//
//	@Summary		Append the next page to the list
//	@Tags			characters
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/characters/more [post]
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, h.engine.LoadMore(r.Context()))
}

// GetCharacter handles GET /api/characters/{id}.
//
//	@Summary		Select a character
//	@Tags			characters
//	@Produce		json
//	@Param			id	path		int	true	"Character id"
//	@Success		200	{object}	CharacterDTO
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/characters/{id} [get]
func (h *Handler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, "get character", err)
		return
	}
	c, err := h.engine.Select(r.Context(), id)
	if err != nil {
		writeError(w, "get character", err)
		return
	}
	if sum, err := checksum.JSON(c); err == nil {
		w.Header().Set("ETag", `"`+sum+`"`)
	}
	writeJSON(w, http.StatusOK, toDTO(h.thumbs, c))
}

// ListComics handles GET /api/characters/{id}/comics.
//
//	@Summary		List comics featuring a character
//	@Tags			characters
//	@Produce		json
//	@Param			id		path		int	true	"Character id"
//	@Param			limit	query		int	false	"Max comics"
//	@Success		200		{object}	ComicsResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/characters/{id}/comics [get]
func (h *Handler) ListComics(w http.ResponseWriter, r *http.Request) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, "list comics", err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	comics, err := h.engine.Comics(r.Context(), id, limit)
	if err != nil {
		writeError(w, "list comics", err)
		return
	}
	writeJSON(w, http.StatusOK, ComicsResponse{Comics: comics})
}

// CreateCharacter handles POST /api/characters.
//
//	@Summary		Create a local character
//	@Tags			characters
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CharacterRequest	true	"Character to create"
//	@Success		201		{object}	MutationResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/characters [post]
func (h *Handler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	c, out, err := h.engine.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create character", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMutationResponse(h.thumbs, c, out))
}

// UpdateCharacter handles PUT /api/characters/{id}.
//
//	@Summary		Update a character with optimistic concurrency
//	@Tags			characters
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int					true	"Character id"
//	@Param			If-Match	header		string				false	"ETag from GET"
//	@Param			body		body		CharacterRequest	true	"Updated fields"
//	@Success		200			{object}	MutationResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/characters/{id} [put]
func (h *Handler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id, err := characterID(r)
	if err != nil {
		writeError(w, "update character", err)
		return
	}
	var req CharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	req.ID = id

	if ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`); ifMatch != "" {
		current, err := h.engine.Get(r.Context(), id)
		if err != nil {
			writeError(w, "update character", err)
			return
		}
		sum, err := checksum.JSON(current)
		if err != nil {
			writeError(w, "update character", err)
			return
		}
		if sum != ifMatch {
			writeError(w, "update character", apperr.ErrConflict)
			return
		}
	}

	c, out, err := h.engine.Update(r.Context(), req)
	if err != nil {
		writeError(w, "update character", err)
		return
	}
	if sum, err := checksum.JSON(c); err == nil {
		w.Header().Set("ETag", `"`+sum+`"`)
	}
	writeJSON(w, http.StatusOK, toMutationResponse(h.thumbs, c, out))
}

// DeleteCharacter handles DELETE /api/characters/{id}.
//
//	@Summary		Delete a character (remote ones are hidden locally)
//	@Tags			characters
//	@Param			id	path	int	true	"Character id"
//	@Success		204	"Character deleted"
//	@Success		200	{object}	errResponse	"Deleted but not saved; body carries the warning"
//	@Security		BearerAuth
//	@Router			/characters/{id} [delete]
func (h *Handler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := characterID(r)
	if err != nil {
		writeError(w, "delete character", err)
		return
	}
	out, err := h.engine.Delete(r.Context(), id)
	if err != nil {
		writeError(w, "delete character", err)
		return
	}
	if out.Warning != "" {
		writeJSON(w, http.StatusOK, map[string]string{"warning": out.Warning})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCharacters handles GET /api/characters/export.
//
//	@Summary		Download the locally stored characters
//	@Tags			characters
//	@Produce		json
//	@Success		200	{array}	CharacterRequest
//	@Security		BearerAuth
//	@Router			/characters/export [get]
func (h *Handler) ExportCharacters(w http.ResponseWriter, _ *http.Request) {
	data, err := h.engine.Export()
	if err != nil {
		writeError(w, "export characters", err)
		return
	}
	name := fmt.Sprintf("characters_%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("export write failed", slog.String("error", err.Error()))
	}
}

// Search handles POST /api/query/search.
//
//	@Summary		Set the name filter and reload the first page
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Search term, empty clears"
//	@Success		200		{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/query/search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.SearchTerm) == "" {
		h.engine.ClearSearch()
	} else {
		h.engine.SetSearchTerm(req.SearchTerm)
	}
	h.writeState(w, h.engine.LoadPage(r.Context()))
}

// NextPage handles POST /api/query/next.
//
//	@Summary		Go to the next page
//	@Tags			query
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/query/next [post]
func (h *Handler) NextPage(w http.ResponseWriter, r *http.Request) {
	h.engine.NextPage()
	h.writeState(w, h.engine.LoadPage(r.Context()))
}

// PreviousPage handles POST /api/query/previous.
//
//	@Summary		Go to the previous page
//	@Tags			query
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/query/previous [post]
func (h *Handler) PreviousPage(w http.ResponseWriter, r *http.Request) {
	h.engine.PreviousPage()
	h.writeState(w, h.engine.LoadPage(r.Context()))
}

// GoToPage handles POST /api/query/page/{n}.
//
//	@Summary		Jump to a 1-based page
//	@Tags			query
//	@Produce		json
//	@Param			n	path		int	true	"Page number"
//	@Success		200	{object}	StateResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query/page/{n} [post]
func (h *Handler) GoToPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("page must be an integer"))
		return
	}
	h.engine.GoToPage(n)
	h.writeState(w, h.engine.LoadPage(r.Context()))
}

// State handles GET /api/state.
//
//	@Summary		Current list state without reloading
//	@Tags			query
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w, h.engine.Snapshot())
}

// SaveSession handles POST /api/sessions.
//
//	@Summary		Save the current search state
//	@Tags			sessions
//	@Produce		json
//	@Success		201	{object}	SessionResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) SaveSession(w http.ResponseWriter, _ *http.Request) {
	token, err := h.engine.SaveSearchState()
	if err != nil {
		writeError(w, "save session", err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Token: token})
}

// RestoreSession handles POST /api/sessions/{token}/restore.
//
//	@Summary		Restore a saved search state and reload
//	@Tags			sessions
//	@Produce		json
//	@Param			token	path		string	true	"Session token"
//	@Success		200		{object}	StateResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{token}/restore [post]
func (h *Handler) RestoreSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.RestoreSearchState(chi.URLParam(r, "token")); err != nil {
		writeError(w, "restore session", err)
		return
	}
	h.writeState(w, h.engine.LoadPage(r.Context()))
}
