package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort      = "8081"
	defaultLatencyMs = "50"
)

type Issuer struct {
	DID     string `json:"did"`
	Name    string `json:"name"`
	AddedBy string `json:"addedBy"`
	AddedAt string `json:"addedAt"`
}

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

var (
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
	// FAIL_EVERY makes every Nth request return 503 so the server's circuit
	// breaker can be exercised locally. Zero disables it.
	failEvery = getEnvInt("FAIL_EVERY", "0")

	mu       sync.Mutex
	requests int
	issuers  = map[string]Issuer{}
)

// seeded DIDs let e2e runs verify without an admin call first.
var seeded = []Issuer{
	{DID: "TRUSTED_ISSUER_1", Name: "Mock Government Issuer"},
	{DID: "TRUSTED_ISSUER_2", Name: "Mock University Issuer"},
}

func main() {
	port := getEnv("PORT", defaultPort)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, iss := range seeded {
		iss.AddedBy = "mock-seed"
		iss.AddedAt = now
		issuers[iss.DID] = iss
	}

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/trusted-dids", handleCollection)
	http.HandleFunc("/trusted-dids/", handleItem)

	log.Printf("Mock Trust Registry starting on port %s", port)
	log.Printf("Simulated latency: %dms, fail every: %d", latencyMs, failEvery)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "trust-registry",
	})
}

func handleCollection(w http.ResponseWriter, r *http.Request) {
	if !simulate(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		mu.Lock()
		out := make([]Issuer, 0, len(issuers))
		for _, iss := range issuers {
			out = append(out, iss)
		}
		mu.Unlock()
		sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
		send(w, http.StatusOK, Envelope{Success: true, Data: out})
	case http.MethodPost:
		var in Issuer
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			send(w, http.StatusBadRequest, Envelope{Error: "invalid JSON body"})
			return
		}
		did := normalizeDID(in.DID)
		if did == "" {
			send(w, http.StatusBadRequest, Envelope{Error: "did is required"})
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, exists := issuers[did]; exists {
			send(w, http.StatusConflict, Envelope{Error: "issuer already trusted"})
			return
		}
		in.DID = did
		in.AddedAt = time.Now().UTC().Format(time.RFC3339Nano)
		issuers[did] = in
		log.Printf("Trusted %s (%s) added by %s", did, in.Name, in.AddedBy)
		send(w, http.StatusCreated, Envelope{Success: true, Data: in})
	default:
		send(w, http.StatusMethodNotAllowed, Envelope{Error: "method not allowed"})
	}
}

func handleItem(w http.ResponseWriter, r *http.Request) {
	if !simulate(w) {
		return
	}
	if r.Method != http.MethodDelete {
		send(w, http.StatusMethodNotAllowed, Envelope{Error: "method not allowed"})
		return
	}
	did := normalizeDID(strings.TrimPrefix(r.URL.Path, "/trusted-dids/"))
	mu.Lock()
	defer mu.Unlock()
	if _, ok := issuers[did]; !ok {
		send(w, http.StatusNotFound, Envelope{Error: "issuer not found"})
		return
	}
	delete(issuers, did)
	log.Printf("Removed %s", did)
	send(w, http.StatusOK, Envelope{Success: true})
}

// simulate applies latency and the configured failure cadence. It reports
// false when it has already written a 503.
func simulate(w http.ResponseWriter) bool {
	if latencyMs > 0 {
		time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	}
	if failEvery <= 0 {
		return true
	}
	mu.Lock()
	requests++
	fail := requests%failEvery == 0
	mu.Unlock()
	if fail {
		send(w, http.StatusServiceUnavailable, Envelope{Error: "simulated outage"})
		return false
	}
	return true
}

func normalizeDID(did string) string {
	return strings.TrimPrefix(strings.TrimSpace(did), "did:sov:")
}

func send(w http.ResponseWriter, code int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
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
