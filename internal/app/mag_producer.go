// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/compass_computer/internal/config"
	"github.com/relabs-tech/compass_computer/internal/heading"
	"github.com/relabs-tech/compass_computer/internal/sensors"
)

// RunMagProducer samples the magnetometer on a fixed interval and publishes
// both the raw-ish 3-axis sample and the derived planar heading to MQTT.
func RunMagProducer() error {
	log.Println("starting compass-computer mag producer")

	cfg := config.Get()

	mgr := sensors.GetMagManager()
	if err := mgr.Init(); err != nil {
		log.Printf("mag producer: init failed: %v", err)
		return err
	}
	defer mgr.Close()

	// ---- connect to MQTT ----
	clientID := cfg.MQTTClientIDProducer
	if clientID == "" {
		clientID = "compass-mag-producer"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("mag producer: mqtt connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)

	magTopic := cfg.TopicMag
	if magTopic == "" {
		magTopic = "compass/mag"
	}
	headingTopic := cfg.TopicHeading
	if headingTopic == "" {
		headingTopic = "compass/heading"
	}

	ms := cfg.MagSampleInterval
	if ms <= 0 {
		ms = 100
	}
	ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("mag producer: publishing to %s and %s every %dms", magTopic, headingTopic, ms)

	for range ticker.C {
		sample, err := mgr.Next()
		if err != nil {
			log.Printf("mag producer: read error: %v", err)
			continue
		}

		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("mag producer: marshal error: %v", err)
			continue
		}
		token := client.Publish(magTopic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mag producer: publish error: %v", token.Error())
			continue
		}

		hdg := heading.Reading{
			Degrees: heading.FromComponents(float64(sample.Mx), float64(sample.My), cfg.MagDeclinationDeg),
			Source:  sample.Source,
			Time:    sample.Time,
		}
		payload, err = json.Marshal(hdg)
		if err != nil {
			log.Printf("mag producer: marshal error: %v", err)
			continue
		}
		token = client.Publish(headingTopic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mag producer: publish error: %v", token.Error())
		}
	}
	return nil
}
