package handlers

import (
	"errors"
	"log"
	"net/http"

	"watchverse/services/profiles"
)

type authPage struct {
	basePage
	Registered      bool
	ResetSent       bool
	PasswordUpdated bool
	Error           string
}

// AuthPage renders the combined sign-in and sign-up page. Signed-in
// visitors are sent home.
func (h *Account) AuthPage(w http.ResponseWriter, r *http.Request) {
	user := h.Session.CurrentUser(r)
	if user != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	query := r.URL.Query()
	render(w, "auth.html", authPage{
		basePage:        newBasePage("Sign In", nil, nil),
		Registered:      query.Get("registered") == "1",
		ResetSent:       query.Get("reset") == "1",
		PasswordUpdated: query.Get("updated") == "1",
	})
}

// Signup creates a new account from the registration form.
func (h *Account) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.signupError(w, "could not read the submitted form")
		return
	}

	_, err := h.Profiles.Create(r.Context(), r.FormValue("username"), r.FormValue("email"), r.FormValue("password"))
	if err == nil {
		http.Redirect(w, r, "/auth?registered=1", http.StatusSeeOther)
		return
	}

	if errors.Is(err, profiles.ErrUsernameTaken) {
		h.signupError(w, "that username or email is already taken")
		return
	}
	log.Printf("[account] signup failed: %v", err)
	h.signupError(w, err.Error())
}

func (h *Account) signupError(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusBadRequest)
	render(w, "auth.html", authPage{
		basePage: newBasePage("Sign In", nil, nil),
		Error:    msg,
	})
}
