package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/drissi/moviespace/internal/apperror"
	"github.com/drissi/moviespace/internal/model"
	"github.com/drissi/moviespace/internal/service"
)

// MaxUploadBytes caps the request body of a CSV upload.
const MaxUploadBytes = 10 << 20

type importPage struct {
	Lists   []model.CustomList
	Jobs    []model.ImportJob
	MaxRows int
}

// ImportHandler accepts CSV exports and shows the status of past imports.
type ImportHandler struct {
	imports  *service.ImportService
	library  *service.LibraryService
	maxRows  int
	renderer *Renderer
	logger   *slog.Logger
}

func NewImportHandler(
	imports *service.ImportService,
	library *service.LibraryService,
	maxRows int,
	renderer *Renderer,
	logger *slog.Logger,
) *ImportHandler {
	return &ImportHandler{
		imports:  imports,
		library:  library,
		maxRows:  maxRows,
		renderer: renderer,
		logger:   logger,
	}
}

// HTTP: GET /import
func (h *ImportHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "")
}

func (h *ImportHandler) renderPage(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	user := currentUser(r)

	lists, err := h.library.Lists(r.Context(), user.ID)
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}
	jobs, err := h.imports.RecentJobs(r.Context(), user.ID)
	if err != nil {
		h.renderer.Error(w, r, err)
		return
	}

	h.renderer.page(w, r, status, "import", view{
		Title: "Import",
		Error: formErr,
		Data:  importPage{Lists: lists, Jobs: jobs, MaxRows: h.maxRows},
	})
}

// HandleUpload parses the uploaded CSV and queues the import. Oversized or
// malformed files are rejected before any background work starts.
//
// HTTP: POST /import/csv (multipart: file, import_type, target)
func (h *ImportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, apperror.ValidationFailed("file",
				fmt.Sprintf("file is too large: the limit is %d MB", MaxUploadBytes>>20)))
			return
		}
		h.fail(w, r, apperror.ValidationFailed("file", "upload a CSV file"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, apperror.ValidationFailed("file", "upload a CSV file"))
		return
	}
	defer file.Close()

	rows, err := service.ParseCSV(file, h.maxRows)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	job, err := h.imports.Start(r.Context(), currentUser(r).ID, service.ImportRequest{
		Source: r.FormValue("import_type"),
		Target: r.FormValue("target"),
		Rows:   rows,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	redirect(w, r, withMsg(service.RedirectPath(job), service.StartedMessage(job)))
}

func (h *ImportHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isFormError(err) {
		h.renderPage(w, r, http.StatusBadRequest, userMessage(err))
		return
	}
	h.renderer.Error(w, r, err)
}
