package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/compass_computer/internal/config"
	"github.com/relabs-tech/compass_computer/internal/heading"
	"github.com/relabs-tech/compass_computer/internal/mag"
	"github.com/relabs-tech/compass_computer/internal/sensors"
)

func RunWeb() error {
	cfg := config.Get()

	var (
		mu          sync.RWMutex
		lastSample  mag.Sample
		haveSample  bool
		lastHeading heading.Reading
		haveHeading bool
	)

	// 1) Connect to MQTT broker
	clientID := cfg.MQTTClientIDWeb
	if clientID == "" {
		clientID = "compass-web-subscriber"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	magTopic := cfg.TopicMag
	if magTopic == "" {
		magTopic = "compass/mag"
	}
	headingTopic := cfg.TopicHeading
	if headingTopic == "" {
		headingTopic = "compass/heading"
	}

	// 2) Subscribe and cache the latest messages
	token := client.Subscribe(magTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s mag.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: mag payload unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastSample = s
		haveSample = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(headingTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var h heading.Reading
		if err := json.Unmarshal(msg.Payload(), &h); err != nil {
			log.Printf("web: heading payload unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastHeading = h
		haveHeading = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s and %s", magTopic, headingTopic)

	// 3) JSON API endpoints: latest sample and heading
	http.HandleFunc("/api/mag", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveSample {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastSample); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/heading", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveHeading {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastHeading); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) WebSocket tooling. These talk to the device directly, so they only
	// work on the machine the magnetometer is attached to; the endpoints are
	// still mounted elsewhere so the pages can report "not available".
	if err := sensors.GetMagManager().Init(); err != nil {
		log.Printf("web: WARNING: magnetometer not available: %v", err)
	}
	http.HandleFunc("/ws/calibration", HandleCalibrationWS)
	http.HandleFunc("/ws/registers", HandleRegisterDebugWS)

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	port := cfg.WebServerPort
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
