package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/auth"
	"github.com/drissi/moviespace/internal/model"
)

type errorPage struct {
	Status  int
	Message string
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// isFormError reports whether err should be shown inline on the form that
// caused it.
func isFormError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrConflict)
}

// userMessage is the text shown for err. Internal errors never leak their
// details.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && statusFor(err) != http.StatusInternalServerError {
		return appErr.Message
	}
	return "Something went wrong. Please try again later."
}

// Error renders the error page for err.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		rd.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	rd.page(w, r, status, "error", view{
		Title: http.StatusText(status),
		Data:  errorPage{Status: status, Message: userMessage(err)},
	})
}

// NotFound is the router's fallback for unknown paths.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.page(w, r, http.StatusNotFound, "error", view{
		Title: "Not Found",
		Data:  errorPage{Status: http.StatusNotFound, Message: "This page does not exist."},
	})
}

// redirect issues a 303 so the browser follows up with GET.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func withMsg(path, msg string) string {
	return path + "?msg=" + url.QueryEscape(msg)
}

// currentUser returns the signed-in user or nil. Routes behind
// auth.RequireUser always get a user.
func currentUser(r *http.Request) *model.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

// pathID parses a numeric URL parameter. Anything else is a missing resource.
func pathID(r *http.Request, name, resource string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}
