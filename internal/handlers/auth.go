package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pliu/quickchat/internal/auth"
	"github.com/pliu/quickchat/internal/email"
	"github.com/pliu/quickchat/internal/middleware"
	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/store"
	"github.com/pliu/quickchat/internal/upload"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	Store     store.Store
	Email     *email.Sender
	Uploader  upload.Uploader
	PublicURL string
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	type SignupRequest struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Bio      string `json:"bio"`
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeError(w, http.StatusBadRequest, "fullName, email and password are required")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &models.User{
		Email:             req.Email,
		FullName:          req.FullName,
		Password:          string(hashedPassword),
		Bio:               req.Bio,
		VerificationToken: uuid.NewString(),
	}

	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusConflict, "account already exists")
		return
	}

	if h.Email != nil {
		link := h.PublicURL + "/api/auth/verify?token=" + user.VerificationToken
		if err := h.Email.SendVerificationEmail(user.Email, user.FullName, link); err != nil {
			log.Printf("failed to send verification email to %s: %v", user.Email, err)
		}
	}

	token := auth.SignToken(strconv.FormatInt(user.ID, 10))
	setTokenCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), creds.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := auth.SignToken(strconv.FormatInt(user.ID, 10))
	setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := h.Store.VerifyUser(r.Context(), token); err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Check confirms the token still resolves to a user.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUserByID(r.Context(), middleware.UserID(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		FullName   string `json:"fullName"`
		Bio        string `json:"bio"`
		ProfilePic string `json:"profilePic"`
	}

	userID := middleware.UserID(r)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profilePic := req.ProfilePic
	if strings.HasPrefix(profilePic, "data:") && h.Uploader != nil {
		url, err := h.Uploader.Upload(r.Context(), profilePic)
		if err != nil {
			writeError(w, http.StatusBadRequest, "profile picture upload failed")
			return
		}
		profilePic = url
	}

	if err := h.Store.UpdateProfile(r.Context(), userID, req.FullName, req.Bio, profilePic); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}
