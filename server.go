package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"

	streakDB "github.com/mldchan/fedistreaks/db"
)

const leaderboardSize = 10

// newStatusServer exposes a small operational surface: liveness and a
// read-only view of the tracked streaks.
func newStatusServer(store *streakDB.Store, conn *sql.DB, port string) *http.Server {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := conn.PingContext(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		count, err := store.TrackedUsers(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]int{"trackedUsers": count})
	})

	r.Get("/streaks", func(w http.ResponseWriter, req *http.Request) {
		leaders, err := store.Leaders(req.Context(), leaderboardSize)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, leaders)
	})

	return &http.Server{Addr: ":" + port, Handler: r}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Writing status response failed: %v", err)
	}
}
