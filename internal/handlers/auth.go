package handlers

import (
	"errors"
	"net/http"
	"strings"

	"library-management-api/internal/middleware"
	"library-management-api/internal/models"
	"library-management-api/internal/session"
	"library-management-api/internal/store"
	"library-management-api/internal/validator"
)

const minPasswordLen = 6

// selfServiceRoles may be chosen on registration.
var selfServiceRoles = []models.UserRole{models.RoleStudent, models.RoleTeacher}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	role := models.RoleStudent
	if input.Role != "" {
		role = models.UserRole(input.Role)
	}

	v := validator.New()
	v.Check(input.Name != "", "name", "must be provided")
	v.Check(input.Email != "", "email", "must be provided")
	v.Check(validator.Matches(input.Email, validator.EmailRX), "email", "must be a valid email address")
	v.Check(len(input.Password) >= minPasswordLen, "password", "must be at least 6 characters long")
	v.Check(validator.In(role, selfServiceRoles...), "role", "must be student or teacher")
	if !v.Valid() {
		h.failedValidationResponse(w, r, v.Errors)
		return
	}

	hash, err := session.HashPassword(input.Password)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			h.errorResponse(w, r, http.StatusBadRequest, "User already exists")
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	token, _, err := h.sessions.Issue(user)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	if err := writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user}); err != nil {
		h.logError(r, err)
	}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(strings.TrimSpace(input.Email) != "", "email", "must be provided")
	v.Check(input.Password != "", "password", "must be provided")
	if !v.Valid() {
		h.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), input.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.invalidCredentialsResponse(w, r)
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}
	if !session.CheckPassword(user.PasswordHash, input.Password) {
		h.invalidCredentialsResponse(w, r)
		return
	}

	token, _, err := h.sessions.Issue(user)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	if err := writeJSON(w, http.StatusOK, authResponse{Token: token, User: user}); err != nil {
		h.logError(r, err)
	}
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if err := writeJSON(w, http.StatusOK, sess.User); err != nil {
		h.logError(r, err)
	}
}

// Logout handles POST /api/auth/logout. Only local tokens can be revoked;
// Firebase sessions end on the client.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess.Provider == session.ProviderLocal {
		h.sessions.Revoke(sess.ID, sess.ExpiresAt)
	}

	h.logger.Info("user logged out", "user_id", sess.UserID)
	if err := writeJSON(w, http.StatusOK, envelope{"message": "Logged out"}); err != nil {
		h.logError(r, err)
	}
}
