package handler

import (
	"log/slog"
	"net/http"

	"github.com/drissi/moviespace/internal/auth"
	"github.com/drissi/moviespace/internal/service"
)

// AuthHandler serves the login, registration and logout pages.
type AuthHandler struct {
	auth     *service.AuthService
	renderer *Renderer
	logger   *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, renderer *Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, renderer: renderer, logger: logger}
}

// HandleLoginPage shows the login form, or sends signed-in users home.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		redirect(w, r, "/")
		return
	}
	h.renderer.page(w, r, http.StatusOK, "login", view{Title: "Log in", Data: service.LoginInput{}})
}

// HandleLogin checks the credentials and sets the session cookie.
//
// HTTP: POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	in := service.LoginInput{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		if isFormError(err) {
			in.Password = ""
			h.renderer.page(w, r, http.StatusBadRequest, "login", view{
				Title: "Log in",
				Error: userMessage(err),
				Data:  in,
			})
			return
		}
		h.renderer.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token)
	redirect(w, r, "/")
}

// HandleRegisterPage shows the registration form, or sends signed-in users
// home.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		redirect(w, r, "/")
		return
	}
	h.renderer.page(w, r, http.StatusOK, "register", view{Title: "Register", Data: service.RegisterInput{}})
}

// HandleRegister creates the account and signs the new user in.
//
// HTTP: POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in := service.RegisterInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		if isFormError(err) {
			in.Password = ""
			h.renderer.page(w, r, http.StatusBadRequest, "register", view{
				Title: "Register",
				Error: userMessage(err),
				Data:  in,
			})
			return
		}
		h.renderer.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token)
	redirect(w, r, "/")
}

// HandleLogout drops the session cookie. Tokens are stateless, so there is
// nothing to revoke server-side.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	redirect(w, r, "/")
}
