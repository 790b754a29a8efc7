// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compass_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("FullFile", func(t *testing.T) {
		path := writeConfig(t, `
# compass computer config
MQTT_BROKER = tcp://localhost:1883
TOPIC_MAG = compass/mag
TOPIC_HEADING = compass/heading

MAG_I2C_BUS = 1
MAG_I2C_ADDR = 0x1E
MAG_GAIN = 5
MAG_AVERAGING = 3
MAG_RATE = 4
MAG_MODE = single
MAG_CALIBRATE_ON_START = true
MAG_DECLINATION_DEG = 3.5
MAG_SAMPLE_INTERVAL = 100
WEB_SERVER_PORT = 8080
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MQTTBroker != "tcp://localhost:1883" {
			t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
		}
		if cfg.MagI2CAddr != 0x1E {
			t.Errorf("MagI2CAddr = 0x%X, want 0x1E", cfg.MagI2CAddr)
		}
		if cfg.MagGain != 5 || cfg.MagAveraging != 3 || cfg.MagRate != 4 {
			t.Errorf("mag settings = %d/%d/%d, want 5/3/4", cfg.MagGain, cfg.MagAveraging, cfg.MagRate)
		}
		if cfg.MagMode != "single" || !cfg.MagCalibrateOnStart {
			t.Errorf("mode = %q calibrate=%v", cfg.MagMode, cfg.MagCalibrateOnStart)
		}
		if cfg.MagDeclinationDeg != 3.5 {
			t.Errorf("declination = %v, want 3.5", cfg.MagDeclinationDeg)
		}
	})
	t.Run("MissingBroker", func(t *testing.T) {
		path := writeConfig(t, "MAG_GAIN = 1\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error for missing MQTT_BROKER")
		}
	})
	t.Run("GainOutOfRange", func(t *testing.T) {
		path := writeConfig(t, "MQTT_BROKER = tcp://x\nMAG_GAIN = 8\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error for MAG_GAIN 8")
		}
	})
	t.Run("UnknownKey", func(t *testing.T) {
		path := writeConfig(t, "MQTT_BROKER = tcp://x\nBOGUS = 1\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error for unknown key")
		}
	})
	t.Run("BadMode", func(t *testing.T) {
		path := writeConfig(t, "MQTT_BROKER = tcp://x\nMAG_MODE = sometimes\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error for bad MAG_MODE")
		}
	})
}
