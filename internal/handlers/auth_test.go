package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/store/sqlstore"
	"golang.org/x/crypto/bcrypt"
)

func TestSignup(t *testing.T) {
	store, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	handler := &AuthHandler{Store: store}

	body, _ := json.Marshal(map[string]string{
		"fullName": "Test User",
		"email":    "test@example.com",
		"password": "password123",
	})

	req := httptest.NewRequest("POST", "/api/auth/signup", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Signup).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}

	var resp struct {
		Success bool        `json:"success"`
		User    models.User `json:"user"`
		Token   string      `json:"token"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Success || resp.Token == "" {
		t.Error("Expected success response carrying a token")
	}

	// Test duplicate account
	req = httptest.NewRequest("POST", "/api/auth/signup", bytes.NewBuffer(body))
	rr = httptest.NewRecorder()
	http.HandlerFunc(handler.Signup).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("handler returned wrong status code for duplicate account: got %v want %v", rr.Code, http.StatusConflict)
	}
}

func TestSignupRejectsMissingFields(t *testing.T) {
	store, _ := sqlstore.New("sqlite3", ":memory:")
	handler := &AuthHandler{Store: store}

	body, _ := json.Marshal(map[string]string{"email": "no-password@example.com"})
	req := httptest.NewRequest("POST", "/api/auth/signup", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Signup).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}

func TestLogin(t *testing.T) {
	store, _ := sqlstore.New("sqlite3", ":memory:")
	handler := &AuthHandler{Store: store}

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	store.CreateUser(context.Background(), &models.User{
		Email:    "test@example.com",
		FullName: "Test User",
		Password: string(hashedPassword),
	})

	body, _ := json.Marshal(Credentials{Email: "test@example.com", Password: "password123"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Login).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Error("Expected token cookie to be set")
	}

	// Wrong password
	body, _ = json.Marshal(Credentials{Email: "test@example.com", Password: "wrong"})
	req = httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	rr = httptest.NewRecorder()
	http.HandlerFunc(handler.Login).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code for bad password: got %v want %v", rr.Code, http.StatusUnauthorized)
	}
}

func TestVerify(t *testing.T) {
	store, _ := sqlstore.New("sqlite3", ":memory:")
	handler := &AuthHandler{Store: store}

	user := &models.User{
		Email:             "v@example.com",
		FullName:          "V",
		Password:          "hash",
		VerificationToken: "the-token",
	}
	store.CreateUser(context.Background(), user)

	req := httptest.NewRequest("GET", "/api/auth/verify?token=the-token", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(handler.Verify).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	got, _ := store.GetUserByID(context.Background(), user.ID)
	if !got.IsVerified {
		t.Error("Expected user to be verified")
	}

	req = httptest.NewRequest("GET", "/api/auth/verify?token=bogus", nil)
	rr = httptest.NewRecorder()
	http.HandlerFunc(handler.Verify).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code for bad token: got %v want %v", rr.Code, http.StatusBadRequest)
	}
}
