package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pliu/quickchat/internal/auth"
	"github.com/pliu/quickchat/internal/chat"
	"github.com/pliu/quickchat/internal/config"
	"github.com/pliu/quickchat/internal/email"
	"github.com/pliu/quickchat/internal/handlers"
	"github.com/pliu/quickchat/internal/middleware"
	"github.com/pliu/quickchat/internal/store"
	"github.com/pliu/quickchat/internal/store/mongostore"
	"github.com/pliu/quickchat/internal/store/sqlstore"
	"github.com/pliu/quickchat/internal/upload"
	"github.com/pliu/quickchat/internal/ws"
)

var addr = flag.String("addr", "", "http service address (overrides ADDR)")

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}
	auth.SecretKey = []byte(cfg.SecretKey)

	st := openStore(cfg)

	uploader, err := upload.NewDiskUploader(cfg.UploadDir, cfg.PublicURL)
	if err != nil {
		log.Fatal(err)
	}

	mailer := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)

	// Initialize WebSocket Hub
	hub := ws.NewHub()
	go hub.Run()

	service := chat.New(st, hub, uploader)
	hub.Service = service

	// Initialize Handlers
	authHandler := &handlers.AuthHandler{Store: st, Email: mailer, Uploader: uploader, PublicURL: cfg.PublicURL}
	messageHandler := &handlers.MessageHandler{Service: service}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	// API Endpoints
	r.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Server is live"))
	}).Methods("GET")

	r.HandleFunc("/api/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/verify", authHandler.Verify).Methods("GET")
	r.Handle("/api/auth/check", middleware.AuthMiddleware(http.HandlerFunc(authHandler.Check))).Methods("GET")
	r.Handle("/api/auth/update-profile", middleware.AuthMiddleware(http.HandlerFunc(authHandler.UpdateProfile))).Methods("PUT")

	r.Handle("/api/messages/users", middleware.AuthMiddleware(http.HandlerFunc(messageHandler.GetUsers))).Methods("GET")
	r.Handle("/api/messages/send/{id:[0-9]+}", middleware.AuthMiddleware(http.HandlerFunc(messageHandler.SendMessage))).Methods("POST")
	r.Handle("/api/messages/mark/{id:[0-9]+}", middleware.AuthMiddleware(http.HandlerFunc(messageHandler.MarkSeen))).Methods("PUT")
	r.Handle("/api/messages/{id:[0-9]+}", middleware.AuthMiddleware(http.HandlerFunc(messageHandler.GetMessages))).Methods("GET")

	// WebSocket endpoint; the handshake carries the signed token as a query
	// parameter (non-browser clients) or the login cookie.
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			if cookie, err := r.Cookie("token"); err == nil {
				token = cookie.Value
			}
		}

		value, err := auth.VerifyToken(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ws.ServeWs(hub, w, r, userID)
	})

	// Serve uploaded images
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	log.Println("Starting server on", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, r))
}

func openStore(cfg *config.Config) store.Store {
	switch cfg.StoreBackend {
	case "mongo":
		st, err := mongostore.New(context.Background(), cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			log.Fatal(err)
		}
		return st
	default:
		st, err := sqlstore.New(cfg.SQLDriver, cfg.SQLDSN)
		if err != nil {
			log.Fatal(err)
		}
		return st
	}
}
