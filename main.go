package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var allowedOrigins []string

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using default values")
	}

	if lvl, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		logrus.SetLevel(lvl)
	}

	// Get configuration from environment
	host := getEnv("HOST", "localhost")
	port := getEnv("PORT", "3000")
	publicURL := getEnv("PUBLIC_URL", fmt.Sprintf("http://%s:%s", host, port))

	// Parse allowed origins
	if originsEnv := os.Getenv("ALLOWED_ORIGINS"); originsEnv != "" {
		for _, origin := range strings.Split(originsEnv, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(origin))
		}
	}

	rl := newRelay(strings.TrimSuffix(publicURL, "/"), defaultRefererTable())
	router := newRouter(rl)

	// Start server
	addr := fmt.Sprintf("%s:%s", host, port)
	logrus.Infof("Streaming relay running at http://%s", addr)
	if len(allowedOrigins) > 0 {
		logrus.Infof("Allowed origins: %s", strings.Join(allowedOrigins, ", "))
	} else {
		logrus.Info("Allowed origins: All (*)")
	}

	if err := http.ListenAndServe(addr, router); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}
}

func newRouter(rl *relay) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.HandleFunc("/", homeHandler).Methods(http.MethodGet)
	router.HandleFunc("/stream", rl.streamHandler).
		Methods(http.MethodGet, http.MethodHead, http.MethodOptions)
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) == 0 {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && lo.Contains(allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Streaming relay - fetches HLS playlists and media segments on behalf of the player",
		"endpoints": map[string]string{
			"stream": "/stream?url={percent-encoded absolute URL}&h={base64 JSON of header hints}",
		},
	})
}
