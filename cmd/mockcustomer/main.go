// Command mockcustomer stands in for the downstream customer endpoint
// during local development: it accepts the gateway's mapped lead
// payload, checks the bearer token, and can be pointed at a handful of
// canned behaviors useful for exercising retry and circuit-breaker logic.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var requestCount atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	bearerToken := os.Getenv("BEARER_TOKEN")

	checkAuth := func(w http.ResponseWriter, r *http.Request) bool {
		if bearerToken == "" {
			return true
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != bearerToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return false
		}
		return true
	}

	http.HandleFunc("/leads/success", func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(w, r) {
			return
		}
		count := requestCount.Add(1)
		logRequest(r, count, 200)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	})

	http.HandleFunc("/leads/slow", func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(w, r) {
			return
		}
		count := requestCount.Add(1)
		time.Sleep(3 * time.Second)
		logRequest(r, count, 200)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted (slow)"})
	})

	http.HandleFunc("/leads/fail", func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(w, r) {
			return
		}
		count := requestCount.Add(1)
		logRequest(r, count, 500)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	http.HandleFunc("/leads/reject", func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(w, r) {
			return
		}
		count := requestCount.Add(1)
		logRequest(r, count, 422)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "rejected lead"})
	})

	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("mock customer endpoint starting on :%s", port)
	log.Printf("  POST /leads/success -> 200 OK")
	log.Printf("  POST /leads/slow    -> 200 OK (3s delay)")
	log.Printf("  POST /leads/fail    -> 500 Error (retriable)")
	log.Printf("  POST /leads/reject  -> 422 Error (not retriable)")
	log.Printf("  GET  /stats         -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, status int) {
	fmt.Printf("[#%d] %s %s -> %d | auth=%s\n",
		count, r.Method, r.URL.Path, status,
		truncate(r.Header.Get("Authorization"), 16),
	)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
