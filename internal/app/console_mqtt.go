package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/compass_computer/internal/config"
	"github.com/relabs-tech/compass_computer/internal/heading"
	"github.com/relabs-tech/compass_computer/internal/mag"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	clientID := cfg.MQTTClientIDConsole
	if clientID == "" {
		clientID = "compass-console-subscriber"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	magTopic := cfg.TopicMag
	if magTopic == "" {
		magTopic = "compass/mag"
	}
	headingTopic := cfg.TopicHeading
	if headingTopic == "" {
		headingTopic = "compass/heading"
	}
	refTopic := cfg.TopicHeadingRef
	if refTopic == "" {
		refTopic = "compass/heading/ref"
	}

	// Subscribe to raw field samples
	magToken := client.Subscribe(magTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s mag.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: mag unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[MAG]  X=%6d  Y=%6d  Z=%6d  |B|=%8.1f\n",
			s.Mx, s.My, s.Mz, s.Norm,
		)
	})
	magToken.Wait()
	if magToken.Error() != nil {
		return magToken.Error()
	}
	log.Printf("console: subscribed to %s", magTopic)

	// Subscribe to the computed heading
	hdgToken := client.Subscribe(headingTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var h heading.Reading
		if err := json.Unmarshal(msg.Payload(), &h); err != nil {
			log.Printf("console: heading unmarshal error: %v", err)
			return
		}

		fmt.Printf("[HDG]  %6.2f°\n", h.Degrees)
	})
	hdgToken.Wait()
	if hdgToken.Error() != nil {
		return hdgToken.Error()
	}
	log.Printf("console: subscribed to %s", headingTopic)

	// Subscribe to the serial reference compass, if one is publishing
	refToken := client.Subscribe(refTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var h heading.Reading
		if err := json.Unmarshal(msg.Payload(), &h); err != nil {
			log.Printf("console: reference heading unmarshal error: %v", err)
			return
		}

		fmt.Printf("[REF]  %6.2f°\n", h.Degrees)
	})
	refToken.Wait()
	if refToken.Error() != nil {
		return refToken.Error()
	}
	log.Printf("console: subscribed to %s", refTopic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
