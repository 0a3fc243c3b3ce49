package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
)

// Mirrors the face service's recognize contract so the API can be exercised
// locally without the real model.
type RecognizeRequest struct {
	Image     string `json:"image"`
	StationID int64  `json:"station_id"`
}

type RecognizeResponse struct {
	Success     bool    `json:"success"`
	PersonnelID int64   `json:"personnel_id"`
	Confidence  float64 `json:"confidence"`
	Message     string  `json:"message,omitempty"`
}

func main() {
	confidence := flag.Float64("confidence", 0.9, "confidence returned for every recognition")
	personnelID := flag.Int64("personnel", 1, "personnel id returned for every recognition")
	flag.Parse()

	http.HandleFunc("/recognize", func(w http.ResponseWriter, r *http.Request) {
		var req RecognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		log.Printf("Recognize request for station %d (image %d chars)", req.StationID, len(req.Image))
		json.NewEncoder(w).Encode(RecognizeResponse{
			Success:     true,
			PersonnelID: *personnelID,
			Confidence:  *confidence,
		})
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Println("Face service mock starting on port 5001...")
	log.Fatal(http.ListenAndServe(":5001", nil))
}
