package routes

import (
	"net/http"

	"codequill/internal/handlers"
	"codequill/internal/metrics"
	"codequill/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

func InitRoutes(
	router *mux.Router,
	jwtSecret string,
	collector *metrics.Collector,
	registry *prometheus.Registry,
	authHandler *handlers.AuthHandler,
	articleH *handlers.ArticleHandler,
	adminH *handlers.AdminHandler,
	aiH *handlers.AIHandler,
	uploadH *handlers.UploadHandler,
) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logging(collector))

	router.Handle("/metrics", metrics.Handler(registry)).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	loginLimiter := middleware.NewRateLimiter(10, 5)

	// --- Публичные маршруты ---
	api.Handle("/register", loginLimiter.Middleware(http.HandlerFunc(authHandler.Register))).Methods("POST")
	api.Handle("/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login))).Methods("POST")
	api.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")
	api.HandleFunc("/verify-email", authHandler.VerifyEmail).Methods("GET")

	api.HandleFunc("/articles", articleH.GetAll).Methods("GET")
	api.HandleFunc("/articles/trending", articleH.Trending).Methods("GET")
	api.HandleFunc("/articles/{id:[0-9]+}", articleH.GetByID).Methods("GET")
	api.HandleFunc("/articles/slug/{slug}", articleH.GetBySlug).Methods("GET")
	api.HandleFunc("/articles/{id:[0-9]+}/comments", articleH.GetComments).Methods("GET")

	api.HandleFunc("/ai/templates", aiH.Templates).Methods("GET")

	// --- Защищённые JWT ---
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuth(jwtSecret))

	protected.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	protected.HandleFunc("/profile", authHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/profile", authHandler.UpdateProfile).Methods("PATCH")

	protected.HandleFunc("/articles", articleH.Create).Methods("POST")
	protected.HandleFunc("/articles/mine", articleH.Mine).Methods("GET")
	protected.HandleFunc("/articles/{id:[0-9]+}", articleH.Update).Methods("PATCH")
	protected.HandleFunc("/articles/{id:[0-9]+}/submit", articleH.Submit).Methods("POST", "OPTIONS")
	protected.HandleFunc("/articles/{id:[0-9]+}/like", articleH.Like).Methods("POST")
	protected.HandleFunc("/articles/{id:[0-9]+}/comments", articleH.AddComment).Methods("POST")

	protected.HandleFunc("/ai/generate", aiH.Generate).Methods("POST")
	protected.HandleFunc("/uploads/cover", uploadH.UploadCover).Methods("POST")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.OnlyRole("admin"))
	admin.HandleFunc("/articles", adminH.Review).Methods("GET")
	admin.HandleFunc("/articles/{id:[0-9]+}/approve", adminH.Approve).Methods("POST", "OPTIONS")
	admin.HandleFunc("/articles/{id:[0-9]+}/reject", adminH.Reject).Methods("POST", "OPTIONS")
	admin.HandleFunc("/users", authHandler.GetUsers).Methods("GET")
	admin.HandleFunc("/users/{id:[0-9]+}", authHandler.UpdateUser).Methods("PATCH")
}
