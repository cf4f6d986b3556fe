// Package main, halka backend uygulamasının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//   1.  Config'i yükle
//   2.  Database'i başlat (embedded migration'larla)
//   3.  Repository'leri oluştur (DB bağlantısı ile)
//   4.  Realtime bus'ı oluştur
//   5.  Admission controller'ı ve service'leri oluştur
//   6.  WebSocket Hub'ı başlat
//   7.  Handler'ları ve middleware'ları oluştur
//   8.  HTTP router'ı kur, route'ları bağla
//   9.  CORS yapılandır
//  10.  HTTP Server'ı başlat
//  11.  Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/halkadev/halka/config"
	"github.com/halkadev/halka/database"
	"github.com/halkadev/halka/handlers"
	"github.com/halkadev/halka/middleware"
	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/pkg/email"
	"github.com/halkadev/halka/pkg/ratelimit"
	"github.com/halkadev/halka/realtime"
	"github.com/halkadev/halka/repository"
	"github.com/halkadev/halka/room"
	"github.com/halkadev/halka/services"
	"github.com/halkadev/halka/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] halka server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	// Migration'lar binary'ye gömülü — dağıtımda ayrıca SQL dosyası taşınmaz.
	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to open embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrations)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	userRepo := repository.NewSQLiteUserRepo(db.Conn)
	sessionRepo := repository.NewSQLiteSessionRepo(db.Conn)
	roomRepo := repository.NewSQLiteRoomRepo(db.Conn)
	participantRepo := repository.NewSQLiteParticipantRepo(db.Conn)
	waitingRepo := repository.NewSQLiteWaitingRepo(db.Conn)
	messageRepo := repository.NewSQLiteMessageRepo(db.Conn)

	// ─── 4. Realtime Bus ───
	// Tüm DB değişiklikleri oda bazlı kanallardan akar; hem WebSocket hub'ı
	// hem oda controller'ları aynı bus'a abone olur.
	bus := realtime.NewMemoryBus()

	// ─── 5. Admission + Service Layer ───
	// Email bildirimi opsiyonel — API key yoksa mailer nil kalır,
	// admission controller bildirimi sessizce atlar.
	var mailer email.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		mailer = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
		log.Println("[main] email notifications enabled")
	} else {
		log.Println("[main] RESEND_API_KEY not set, email notifications disabled")
	}

	admission := room.NewAdmissionController(participantRepo, waitingRepo, userRepo, bus, mailer)

	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	roomService := services.NewRoomService(roomRepo, participantRepo, admission, bus)
	messageService := services.NewMessageService(messageRepo, userRepo, roomRepo, admission, bus)

	uploadService, err := services.NewUploadService(cfg.Upload.Dir, cfg.Upload.MaxSize)
	if err != nil {
		log.Fatalf("[main] failed to initialize upload service: %v", err)
	}

	// Mesaj flood koruması: pencere başına 10 mesaj, aşımda 30sn cooldown.
	messageLimiter := ratelimit.NewMessageRateLimiter(10, 10*time.Second, 30*time.Second)
	defer messageLimiter.Close()

	// ─── 6. WebSocket Hub ───
	//
	// Hub, bus'taki oda kanallarını WebSocket client'larına köprüler.
	// Oda aboneliği yetki ister — sadece üyeler odanın event akışını dinleyebilir.
	// Hub ws paketinde yaşıyor ama üyelik bilgisi repo/admission katmanında;
	// bağımlılık yönünü korumak için kontrol closure olarak enjekte edilir.
	hub := ws.NewHub(bus, func(userID, roomID string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rm, err := roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return false
		}
		state, err := admission.MembershipStatus(ctx, rm, userID)
		if err != nil {
			return false
		}
		return state == models.MembershipMember
	})
	go hub.Run()

	// ─── 7. Handler + Middleware Layer ───
	authHandler := handlers.NewAuthHandler(authService)
	roomHandler := handlers.NewRoomHandler(roomService)
	messageHandler := handlers.NewMessageHandler(messageService, uploadService, messageLimiter, cfg.Upload.MaxSize)
	wsHandler := ws.NewHandler(hub, authService)

	authMiddleware := middleware.NewAuthMiddleware(authService, userRepo)

	// ─── 8. HTTP Router ───
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"halka"}`)
	})

	// Auth — public endpoint'ler (token gerekmez)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	// Protected endpoint'ler — authMiddleware.Require() sarar
	mux.Handle("GET /api/users/me", authMiddleware.Require(http.HandlerFunc(authHandler.Me)))

	// Rooms — CRUD
	mux.Handle("GET /api/rooms", authMiddleware.Require(
		http.HandlerFunc(roomHandler.List)))
	mux.Handle("POST /api/rooms", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Create)))
	mux.Handle("GET /api/rooms/{id}", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Get)))
	mux.Handle("PUT /api/rooms/{id}", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Update)))
	mux.Handle("DELETE /api/rooms/{id}", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Delete)))

	// Rooms — üyelik ve bekleme odası
	mux.Handle("POST /api/rooms/{id}/join", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Join)))
	mux.Handle("POST /api/rooms/{id}/leave", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Leave)))
	mux.Handle("GET /api/rooms/{id}/members", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Members)))
	mux.Handle("GET /api/rooms/{id}/waiting", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Pending)))
	mux.Handle("POST /api/rooms/{id}/waiting/{entryId}/approve", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Approve)))
	mux.Handle("POST /api/rooms/{id}/waiting/{entryId}/deny", authMiddleware.Require(
		http.HandlerFunc(roomHandler.Deny)))

	// Messages
	mux.Handle("GET /api/rooms/{id}/messages", authMiddleware.Require(
		http.HandlerFunc(messageHandler.List)))
	mux.Handle("POST /api/rooms/{id}/messages", authMiddleware.Require(
		http.HandlerFunc(messageHandler.Create)))
	mux.Handle("POST /api/rooms/{id}/read", authMiddleware.Require(
		http.HandlerFunc(messageHandler.MarkRead)))

	// ICE — client'lar peer bağlantılarını bu STUN listesiyle kurar
	// (room.NewPeerConnection ile aynı yapılandırma).
	mux.Handle("GET /api/ice", authMiddleware.Require(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pkg.JSON(w, http.StatusOK, map[string]any{"stun_urls": cfg.ICE.STUNURLs})
		})))

	// Upload — bağımsız dosya yükleme endpoint'i
	mux.Handle("POST /api/upload", authMiddleware.Require(
		http.HandlerFunc(messageHandler.Upload)))

	// Static file serving — yüklenen dosyalara erişim
	//
	// http.StripPrefix: URL'den "/api/uploads/" kısmını çıkarır.
	// http.FileServer: Kalan path'i upload dizininde dosya olarak arar.
	//
	// Path traversal koruması:
	// http.FileServer zaten ".." path'lerini reddeder.
	// Ek güvenlik için sadece dosya isimlerini kabul edip subdirectory'leri reddediyoruz.
	uploadsHandler := http.StripPrefix("/api/uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/") || strings.Contains(r.URL.Path, "\\") {
			http.NotFound(w, r)
			return
		}
		http.FileServer(http.Dir(cfg.Upload.Dir)).ServeHTTP(w, r)
	}))
	mux.Handle("GET /api/uploads/", uploadsHandler)

	// WebSocket — token query parameter ile authenticate edilir
	//
	// Neden auth middleware kullanmıyoruz?
	// WebSocket upgrade sırasında tarayıcılar custom HTTP header gönderemez.
	// Bu yüzden JWT token URL query parameter olarak gönderilir:
	//   ws://server/ws?token=JWT_TOKEN
	// WS handler kendi içinde token doğrulaması yapar.
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)

	// ─── 9. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000", // Vite dev server
			"http://localhost:1420", // Tauri dev
			"tauri://localhost",     // Tauri production
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            false,
	})

	handler := corsHandler.Handler(mux)

	// ─── 10. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 11. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce WebSocket bağlantılarını kapat, sonra bus'ı — client'lar koparken
	// bus aboneliklerini temizler. En son HTTP server'ı kapat: yeni request
	// kabul etmeyi durdurur, mevcut request'lerin bitmesini bekler (5sn timeout).
	hub.Shutdown()
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
