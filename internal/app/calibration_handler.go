// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/compass_computer/internal/hmc5883l"
	"github.com/relabs-tech/compass_computer/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// CalibrationSession holds the state of an active self-test calibration
type CalibrationSession struct {
	Conn    *websocket.Conn
	mu      sync.Mutex
	results CalibrationResult
}

// GainResult is the outcome of the self test for one gain setting.
type GainResult struct {
	Gain        int     `json:"gain"`
	LSBPerGauss float64 `json:"lsb_per_gauss"`
	OK          bool    `json:"ok"`
	Error       string  `json:"error,omitempty"`
	ScaleX      float64 `json:"scale_x"`
	ScaleY      float64 `json:"scale_y"`
	ScaleZ      float64 `json:"scale_z"`
}

// CalibrationResult is the JSON file written under ./calibration/.
type CalibrationResult struct {
	Version   int          `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Gains     []GainResult `json:"gains"`
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // start, cancel
	Gain   int    `json:"gain"`   // -1 = sweep all gains
}

type WSResponse struct {
	Type     string      `json:"type"` // step, progress, result, complete, error
	Gain     int         `json:"gain,omitempty"`
	Progress float64     `json:"progress,omitempty"`
	Results  interface{} `json:"results,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// HandleCalibrationWS handles the WebSocket connection for self-test
// calibration. The browser picks one gain or the full sweep; each gain runs
// the strap-excitation self test and reports the derived scale factors.
func HandleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &CalibrationSession{
		Conn: conn,
		results: CalibrationResult{
			Version:   1,
			Timestamp: time.Now(),
		},
	}

	// Main message loop
	for {
		var msg WSMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			break
		}

		switch msg.Action {
		case "start":
			session.mu.Lock()
			err := session.run(msg.Gain)
			session.mu.Unlock()
			if err != nil {
				session.sendError(err.Error())
			}

		case "cancel":
			log.Printf("calibration: cancelled by user")
			return
		}
	}
}

// run sweeps the requested gain(s), then restores the configured device
// state and writes the result file.
func (s *CalibrationSession) run(gain int) error {
	mgr := sensors.GetMagManager()
	if !mgr.IsAvailable() {
		return fmt.Errorf("magnetometer not available")
	}

	gains := make([]int, 0, hmc5883l.NumGains)
	if gain >= 0 {
		if gain >= hmc5883l.NumGains {
			return fmt.Errorf("gain %d out of range", gain)
		}
		gains = append(gains, gain)
	} else {
		for g := 0; g < hmc5883l.NumGains; g++ {
			gains = append(gains, g)
		}
	}

	s.results.Timestamp = time.Now()
	s.results.Gains = s.results.Gains[:0]

	for i, g := range gains {
		s.sendStep(g)

		res := GainResult{
			Gain:        g,
			LSBPerGauss: hmc5883l.Gain(g).LSBPerGauss(),
			ScaleX:      1, ScaleY: 1, ScaleZ: 1,
		}
		sx, sy, sz, err := mgr.Calibrate(g)
		if err != nil {
			log.Printf("calibration: gain %d failed: %v", g, err)
			res.Error = err.Error()
			// The failed self test leaves the device in the test
			// configuration; put it back before the next gain.
			if reErr := mgr.Reprogram(); reErr != nil {
				return fmt.Errorf("reprogram after failed self test: %w", reErr)
			}
		} else {
			res.OK = true
			res.ScaleX, res.ScaleY, res.ScaleZ = sx, sy, sz
		}
		s.results.Gains = append(s.results.Gains, res)

		s.Conn.WriteJSON(WSResponse{Type: "result", Gain: g, Results: res})
		s.sendProgress(float64(i+1) / float64(len(gains)) * 100)
	}

	filename, err := s.save()
	if err != nil {
		return err
	}

	// Send completion message
	s.Conn.WriteJSON(WSResponse{
		Type:    "complete",
		Results: map[string]interface{}{"filename": filename},
	})

	return nil
}

// save writes the result file under ./calibration/.
func (s *CalibrationSession) save() (string, error) {
	if err := os.MkdirAll("calibration", 0o755); err != nil {
		return "", fmt.Errorf("create calibration dir: %w", err)
	}
	filename := filepath.Join("calibration",
		fmt.Sprintf("mag_selftest_%s.json", s.results.Timestamp.Format("20060102_150405")))

	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	log.Printf("calibration: results written to %s", filename)
	return filename, nil
}

func (s *CalibrationSession) sendStep(gain int) {
	s.Conn.WriteJSON(WSResponse{
		Type: "step",
		Gain: gain,
	})
}

func (s *CalibrationSession) sendProgress(progress float64) {
	s.Conn.WriteJSON(WSResponse{
		Type:     "progress",
		Progress: progress,
	})
}

func (s *CalibrationSession) sendError(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}
