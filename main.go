package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cubedraft/cubedraft/internal/dal"
	"github.com/cubedraft/cubedraft/internal/handlers"
	"github.com/cubedraft/cubedraft/internal/logger"
	"github.com/cubedraft/cubedraft/internal/mocks"
	"github.com/cubedraft/cubedraft/internal/pubsub"
	"github.com/cubedraft/cubedraft/internal/ratings"
)

var (
	dataStore dal.DraftStore
	ps        interface {
		Publish(pubsub.Event)
		Subscribe() chan pubsub.Event
		Unsubscribe(chan pubsub.Event)
	}
	ratingsClient interface {
		GetRating(string) (float64, error)
		GetAllRatings() (map[string]float64, error)
		SyncRatings(func(string, float64) error) error
		Close() error
	}
	ratingTable *ratings.Table
)

func main() {
	// Initialize logger first
	logger.Init()

	logger.Info("Starting cube draft service")

	// Initialize database driver
	dbDriver := os.Getenv("DB_DRIVER")
	if dbDriver == "" {
		dbDriver = "memory"
	}

	var err error
	switch dbDriver {
	case "memory":
		dataStore = dal.NewMemoryStore()
		logger.Info("Using in-memory draft store")
	case "sqlite":
		sqliteFile := os.Getenv("SQLITE_FILE")
		if sqliteFile == "" {
			sqliteFile = "dev.sqlite"
		}
		dataStore, err = dal.NewSQLiteStore(sqliteFile)
		if err != nil {
			logger.Error("Failed to initialize SQLite", "error", err)
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		logger.Info("Connected to SQLite database", "file", sqliteFile)
	case "postgres":
		dbConnString := os.Getenv("DATABASE_URL")
		if dbConnString == "" {
			logger.Error("DATABASE_URL environment variable is required for postgres driver")
			log.Fatal("DATABASE_URL environment variable is required for postgres driver")
		}
		dataStore, err = dal.NewPostgresStore(dbConnString)
		if err != nil {
			logger.Error("Failed to initialize Postgres", "error", err)
			log.Fatalf("Failed to initialize Postgres: %v", err)
		}
		logger.Info("Connected to Postgres database")
	default:
		logger.Error("Unknown DB_DRIVER", "driver", dbDriver)
		log.Fatalf("Unknown DB_DRIVER: %s (valid: memory, sqlite, postgres)", dbDriver)
	}

	// Initialize pub/sub (NATS JetStream, or embedded NATS for development)
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	natsSubject := os.Getenv("NATS_SUBJECT")
	if natsSubject == "" {
		natsSubject = "draft.picks"
	}

	environment := os.Getenv("ENVIRONMENT")

	if os.Getenv("NATS_EMBEDDED") == "false" && environment != "production" {
		// In-memory stand-in when even the embedded server is unwanted
		ps = mocks.NewMockNATSPubSub()
	} else if environment == "" || environment == "development" {
		logger.Info("Starting embedded NATS server for local development")
		embeddedNats, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Port:       -1,
			Subject:    natsSubject,
			StreamName: "DRAFT_PICKS",
		})
		if err != nil {
			logger.Error("Failed to initialize embedded NATS", "error", err)
			log.Fatalf("Failed to initialize embedded NATS: %v", err)
		}
		ps = embeddedNats
		logger.Info("Embedded NATS server ready", "url", embeddedNats.ServerURL())
	} else {
		opts := pubsub.DefaultNATSOptions(natsURL)
		opts.Subject = natsSubject
		realNats, err := pubsub.NewNATSPubSub(opts)
		if err != nil {
			logger.Error("Failed to initialize NATS", "error", err)
			log.Fatalf("Failed to initialize NATS: %v", err)
		}
		ps = realNats
		logger.Info("Connected to NATS", "url", natsURL)
	}

	// Initialize the card rating source (ClickHouse analytics, or a static
	// mock table in development)
	ratingTable = ratings.NewTable()
	if environment == "" || environment == "development" {
		ratingsClient = mocks.NewMockRatingsClient()
	} else {
		chAddr := os.Getenv("CLICKHOUSE_ADDR")
		if chAddr == "" {
			chAddr = "localhost:9000"
		}
		chDB := os.Getenv("CLICKHOUSE_DB")
		if chDB == "" {
			chDB = "default"
		}
		chUser := os.Getenv("CLICKHOUSE_USER")
		if chUser == "" {
			chUser = "default"
		}
		chPass := os.Getenv("CLICKHOUSE_PASSWORD")

		ratingsClient, err = ratings.NewClient(chAddr, chDB, chUser, chPass)
		if err != nil {
			logger.Error("Failed to initialize ClickHouse", "error", err, "address", chAddr)
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		logger.Info("Connected to ClickHouse", "address", chAddr, "database", chDB)
	}

	// Periodic rating sync keeps the table fresh without touching sessions
	// already holding a snapshot
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		syncRatings()

		for range ticker.C {
			syncRatings()
		}
	}()

	// Set up HTTP routes
	mux := http.NewServeMux()

	api := handlers.NewAPIHandlers(dataStore, bridgePubSub(ps), ratingTable)

	// Draft API
	mux.HandleFunc("/api/draft/start", api.StartDraft)
	mux.HandleFunc("/api/draft/pack", api.GetPack)
	mux.HandleFunc("/api/draft/status", api.GetStatus)
	mux.HandleFunc("/api/draft/pick", api.DraftPick)
	mux.HandleFunc("/api/draft/arrange", api.ArrangePicks)
	mux.HandleFunc("/api/draft/finish", api.FinishDraft)
	mux.HandleFunc("/api/draft/record", api.GetFinishedDraft)

	// SSE for realtime updates
	mux.HandleFunc("/api/events", api.EventsSSE)

	// Health check endpoints
	mux.HandleFunc("/api/health", healthHandler)
	mux.HandleFunc("/healthz", livenessHandler) // Kubernetes liveness probe
	mux.HandleFunc("/readyz", readinessHandler) // Kubernetes readiness probe

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	addr := "0.0.0.0:" + port
	logger.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Server failed", "error", err)
		log.Fatal(err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	// Check draft store connectivity
	if dataStore != nil {
		if err := dataStore.Ping(); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Check the rating source (only meaningful in production)
	environment := os.Getenv("ENVIRONMENT")
	if environment == "production" && ratingsClient != nil {
		_, err := ratingsClient.GetAllRatings()
		if err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["clickhouse"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["clickhouse"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	}

	if environment == "production" && ps != nil {
		// Connection health is handled internally by the NATS client
		checks["nats"] = map[string]interface{}{
			"status": "healthy",
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// livenessHandler handles Kubernetes liveness probes
// Returns 200 if the application is running (doesn't check dependencies)
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// readinessHandler handles Kubernetes readiness probes
// Returns 200 if the application is ready to serve traffic (checks critical dependencies)
func readinessHandler(w http.ResponseWriter, r *http.Request) {
	if dataStore != nil {
		if err := dataStore.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":    "not_ready",
				"reason":    "database_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

// syncRatings pulls the latest card ratings into the shared table
func syncRatings() {
	logger.Info("Syncing card ratings")

	err := ratingsClient.SyncRatings(func(cardName string, rating float64) error {
		return ratingTable.Set(cardName, rating)
	})
	if err != nil {
		logger.Error("Failed to sync card ratings", "error", err)
	} else {
		logger.Info("Card ratings synced", "cards", ratingTable.Len())
	}
}

// bridgePubSub wraps the NATS pubsub as a local *pubsub.PubSub for handlers.
// Publishes go to NATS; events arriving from NATS reach local SSE clients.
func bridgePubSub(ps interface {
	Publish(pubsub.Event)
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}) *pubsub.PubSub {
	return pubsub.NewWithUpstream(ps)
}
