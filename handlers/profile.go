package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"watchverse/models"
	"watchverse/services/profiles"
)

// maxUploadBytes caps the multipart form size for profile edits. Slightly
// above the avatar limit so the store can reject oversized images itself.
const maxUploadBytes = 6 << 20

type profileService interface {
	Create(ctx context.Context, username, email, plainPassword string) (*models.Profile, error)
	Update(ctx context.Context, userID, fullName, username string) error
	SaveAvatar(ctx context.Context, userID string, upload io.Reader) (string, error)
	GetByLogin(ctx context.Context, login string) (*models.Profile, error)
	RequestPasswordReset(ctx context.Context, userID string) error
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
}

var _ profileService = (*profiles.Service)(nil)

// Account handles the profile editor, registration and the password
// reset pages.
type Account struct {
	Profiles profileService
	Session  sessionResolver
}

// NewAccount creates the account handler set.
func NewAccount(profileSvc profileService, session sessionResolver) *Account {
	return &Account{Profiles: profileSvc, Session: session}
}

type profilePage struct {
	basePage
	Profile   *models.Profile
	Saved     bool
	ResetSent bool
	Error     string
}

// EditForm renders the profile editor. Requires a session.
func (h *Account) EditForm(w http.ResponseWriter, r *http.Request) {
	user := h.Session.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	render(w, "profile.html", profilePage{
		basePage:  newBasePage("Edit Profile", user, nil),
		Profile:   user,
		Saved:     r.URL.Query().Get("saved") == "1",
		ResetSent: r.URL.Query().Get("reset") == "1",
	})
}

// EditSubmit applies name, username and avatar changes.
func (h *Account) EditSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.editError(w, user, "could not read the submitted form")
		return
	}

	if err := h.Profiles.Update(ctx, user.ID, r.FormValue("full_name"), r.FormValue("username")); err != nil {
		if errors.Is(err, profiles.ErrUsernameTaken) {
			h.editError(w, user, "that username is already taken")
			return
		}
		log.Printf("[account] profile update failed for %s: %v", user.ID, err)
		h.editError(w, user, "could not save your profile")
		return
	}

	if file, _, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		if _, err := h.Profiles.SaveAvatar(ctx, user.ID, file); err != nil {
			h.editError(w, user, "could not save the avatar: "+err.Error())
			return
		}
	}

	http.Redirect(w, r, "/profile?saved=1", http.StatusSeeOther)
}

func (h *Account) editError(w http.ResponseWriter, user *models.Profile, msg string) {
	w.WriteHeader(http.StatusBadRequest)
	render(w, "profile.html", profilePage{
		basePage: newBasePage("Edit Profile", user, nil),
		Profile:  user,
		Error:    msg,
	})
}

// RequestReset mails a password reset link to the signed-in user.
func (h *Account) RequestReset(w http.ResponseWriter, r *http.Request) {
	user := h.Session.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	if err := h.Profiles.RequestPasswordReset(r.Context(), user.ID); err != nil {
		log.Printf("[account] reset request failed for %s: %v", user.ID, err)
	}
	http.Redirect(w, r, "/profile?reset=1", http.StatusSeeOther)
}

// ForgotPassword handles the anonymous reset form. The response is the
// same whether or not the login matched a profile.
func (h *Account) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	login := r.FormValue("login")

	profile, err := h.Profiles.GetByLogin(ctx, login)
	if err != nil {
		log.Printf("[account] login lookup failed: %v", err)
	}
	if profile != nil {
		if err := h.Profiles.RequestPasswordReset(ctx, profile.ID); err != nil {
			log.Printf("[account] reset request failed for %s: %v", profile.ID, err)
		}
	}
	http.Redirect(w, r, "/auth?reset=1", http.StatusSeeOther)
}

type updatePasswordPage struct {
	basePage
	Token string
	Error string
}

// UpdatePasswordForm renders the new-password form behind a reset link.
func (h *Account) UpdatePasswordForm(w http.ResponseWriter, r *http.Request) {
	render(w, "update_password.html", updatePasswordPage{
		basePage: newBasePage("Choose a New Password", h.Session.CurrentUser(r), nil),
		Token:    r.URL.Query().Get("token"),
	})
}

// UpdatePasswordSubmit consumes the reset token and stores the new password.
func (h *Account) UpdatePasswordSubmit(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	err := h.Profiles.CompletePasswordReset(r.Context(), token, r.FormValue("password"))
	if err == nil {
		http.Redirect(w, r, "/auth?updated=1", http.StatusSeeOther)
		return
	}

	msg := "could not update the password: " + err.Error()
	if errors.Is(err, profiles.ErrResetTokenInvalid) {
		msg = "this reset link has expired or was already used"
	}
	w.WriteHeader(http.StatusBadRequest)
	render(w, "update_password.html", updatePasswordPage{
		basePage: newBasePage("Choose a New Password", h.Session.CurrentUser(r), nil),
		Token:    token,
		Error:    msg,
	})
}
