package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultPort      = "8082"
	defaultLatencyMs = "0"
)

// Callback is the outcome the wallet POSTs once a verification is decided.
type Callback struct {
	Action    string          `json:"action"`
	SessionID string          `json:"sessionId"`
	Verified  bool            `json:"verified"`
	Message   string          `json:"message"`
	Requester string          `json:"requester"`
	Proof     json.RawMessage `json:"proof,omitempty"`
}

type Ack struct {
	Verified bool           `json:"verified"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

var (
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
	// REJECT=true answers every callback with 500 to exercise callback.failed.
	reject = getEnv("REJECT", "false") == "true"

	mu       sync.Mutex
	received []Callback
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/callback", handleCallback)
	http.HandleFunc("/received", handleReceived)

	log.Printf("Mock Requester starting on port %s", port)
	log.Printf("Simulated latency: %dms, reject: %t", latencyMs, reject)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "requester",
	})
}

func handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if latencyMs > 0 {
		time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var cb Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	mu.Lock()
	received = append(received, cb)
	mu.Unlock()
	log.Printf("Callback %s for session %s verified=%t: %s", cb.Action, cb.SessionID, cb.Verified, cb.Message)

	if reject {
		http.Error(w, "simulated failure", http.StatusInternalServerError)
		return
	}

	ack := Ack{Verified: cb.Verified, Message: "received"}
	if cb.Action == "share" && cb.Verified {
		ack.Message = "welcome"
		ack.Details = map[string]any{"sessionId": cb.SessionID}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ack)
}

// handleReceived lets e2e runs assert on what was delivered.
func handleReceived(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	out := append([]Callback(nil), received...)
	mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
