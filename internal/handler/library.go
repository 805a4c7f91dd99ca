package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/service"
)

// LibraryHandler serves everything a signed-in user keeps: watch status,
// reviews, custom lists and the profile page. All routes require a user.
type LibraryHandler struct {
	library  *service.LibraryService
	reviews  *service.ReviewService
	renderer *Renderer
	logger   *slog.Logger
}

func NewLibraryHandler(
	library *service.LibraryService,
	reviews *service.ReviewService,
	renderer *Renderer,
	logger *slog.Logger,
) *LibraryHandler {
	return &LibraryHandler{
		library:  library,
		reviews:  reviews,
		renderer: renderer,
		logger:   logger,
	}
}

func moviePath(id int64) string { return fmt.Sprintf("/movie/%d", id) }
func listPath(id int64) string  { return fmt.Sprintf("/lists/%d", id) }

// HTTP: POST /movie/{id}/add-to-list (form: status)
func (h *LibraryHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "movie")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	if err := h.library.SetStatus(r.Context(), currentUser(r).ID, id, r.FormValue("status")); err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	redirect(w, r, moviePath(id))
}

// HTTP: POST /movie/{id}/remove-from-list
func (h *LibraryHandler) HandleClearStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "movie")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	if err := h.library.ClearStatus(r.Context(), currentUser(r).ID, id); err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	redirect(w, r, moviePath(id))
}

// HTTP: POST /movie/{id}/review (form: rating, review_text)
func (h *LibraryHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "movie")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}

	rating, err := cast.ToFloat64E(r.FormValue("rating"))
	if err != nil {
		h.renderer.Error(w, r, apperror.ValidationFailed("rating", "rating must be a number between 1 and 10"))
		return
	}

	in := service.ReviewInput{Rating: rating, ReviewText: r.FormValue("review_text")}
	if _, err := h.reviews.Save(r.Context(), currentUser(r).ID, id, in); err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	redirect(w, r, moviePath(id))
}

// HTTP: GET /profile?msg
func (h *LibraryHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.library.Profile(r.Context(), currentUser(r).ID)
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	h.renderer.page(w, r, http.StatusOK, "profile", view{
		Title:  "Profile",
		Notice: r.URL.Query().Get("msg"),
		Data:   profile,
	})
}

// HTTP: GET /lists
func (h *LibraryHandler) HandleLists(w http.ResponseWriter, r *http.Request) {
	h.renderLists(w, r, http.StatusOK, "")
}

func (h *LibraryHandler) renderLists(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	summaries, err := h.library.Overview(r.Context(), currentUser(r).ID)
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	h.renderer.page(w, r, status, "lists", view{Title: "Your lists", Error: formErr, Data: summaries})
}

// HTTP: POST /lists/create (form: name, description)
func (h *LibraryHandler) HandleCreateList(w http.ResponseWriter, r *http.Request) {
	in := service.ListInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	if _, err := h.library.CreateList(r.Context(), currentUser(r).ID, in); err != nil {
		if isFormError(err) {
			h.renderLists(w, r, http.StatusBadRequest, userMessage(err))
			return
		}
		h.renderer.Error(w, r, err)
		return
	}
	redirect(w, r, "/lists")
}

// HTTP: GET /lists/{id}?page&msg
func (h *LibraryHandler) HandleViewList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "id", "list")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}

	page := listPageParam(r.URL.Query().Get("page"))

	lp, err := h.library.ListPage(r.Context(), currentUser(r).ID, listID, page)
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	h.renderer.page(w, r, http.StatusOK, "list_detail", view{
		Title:  lp.List.Name,
		Notice: r.URL.Query().Get("msg"),
		Data:   lp,
	})
}

// HTTP: POST /lists/{id}/add-movie/{movie_id}
func (h *LibraryHandler) HandleAddMovie(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "id", "list")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	movieID, err := pathID(r, "movie_id", "movie")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}

	if err := h.library.AddToList(r.Context(), currentUser(r).ID, listID, movieID); err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	redirect(w, r, listPath(listID))
}

// HTTP: POST /lists/{id}/delete
func (h *LibraryHandler) HandleDeleteList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "id", "list")
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	if err := h.library.DeleteList(r.Context(), currentUser(r).ID, listID); err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	redirect(w, r, "/lists")
}

// listPageParam reads the ?page value. Garbage means the first page; a number
// too large for an int is past any list's end.
func listPageParam(raw string) int {
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
			return math.MaxInt
		}
		return 1
	}
	return page
}
