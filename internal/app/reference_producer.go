package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/compass_computer/internal/config"
	"github.com/relabs-tech/compass_computer/internal/heading"
)

// RunReferenceProducer opens the reference compass serial port, parses NMEA
// heading sentences (HDT/HDG), and publishes them as JSON to MQTT so the
// console and web views can show them next to the magnetometer heading.
func RunReferenceProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	clientID := cfg.MQTTClientIDReference
	if clientID == "" {
		clientID = "compass-reference-producer"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("reference producer connected to MQTT broker at %s", cfg.MQTTBroker)

	topic := cfg.TopicHeadingRef
	if topic == "" {
		topic = "compass/heading/ref"
	}

	// ---- 2) Open reference compass serial port ----
	portName := cfg.RefSerialPort
	if portName == "" {
		portName = "/dev/ttyUSB0"
	}
	baud := cfg.RefBaudRate
	if baud == 0 {
		baud = 4800
	}
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("reference serial port opened on %s at %d baud", portName, baud)

	reader := bufio.NewReader(port)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("reference read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// NMEA sentences usually start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy sensor or partial sentences; skip quietly
			continue
		}

		var deg float64
		switch sentence.DataType() {
		case nmea.TypeHDT:
			m := sentence.(nmea.HDT)
			deg = m.Heading
		case nmea.TypeHDG:
			m := sentence.(nmea.HDG)
			deg = m.Heading
		default:
			// ignore everything that is not a heading sentence
			continue
		}

		ref := heading.Reading{
			Degrees: heading.Normalize(deg),
			Source:  portName,
			Time:    time.Now().UTC().Format(time.RFC3339),
		}
		payload, err := json.Marshal(ref)
		if err != nil {
			log.Printf("reference JSON marshal error: %v", err)
			continue
		}

		token := client.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("reference publish error: %v", token.Error())
			continue
		}
	}
}
