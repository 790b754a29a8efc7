package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/compass_computer/internal/config"
	"github.com/relabs-tech/compass_computer/internal/heading"
	"github.com/relabs-tech/compass_computer/internal/mag"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	sample     mag.Sample
	haveSample bool

	hdg     heading.Reading
	haveHdg bool
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	addr := cfg.DisplayI2CAddr
	if addr == 0 {
		addr = 0x3C
	}
	display, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", addr)

	if err := showSplash(display); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	// Data storage
	data := &DisplayData{}

	// Connect to MQTT
	clientID := cfg.MQTTClientIDDisplay
	if clientID == "" {
		clientID = "compass-display-subscriber"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	magTopic := cfg.TopicMag
	if magTopic == "" {
		magTopic = "compass/mag"
	}
	headingTopic := cfg.TopicHeading
	if headingTopic == "" {
		headingTopic = "compass/heading"
	}

	token := client.Subscribe(magTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s mag.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: mag unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.sample = s
		data.haveSample = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", magTopic)

	token = client.Subscribe(headingTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var h heading.Reading
		if err := json.Unmarshal(msg.Payload(), &h); err != nil {
			log.Printf("display: heading unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.hdg = h
		data.haveHdg = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", headingTopic)

	// Display update loop
	interval := cfg.DisplayUpdateInterval
	if interval <= 0 {
		interval = 250
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := DisplayData{
			sample:     data.sample,
			haveSample: data.haveSample,
			hdg:        data.hdg,
			haveHdg:    data.haveHdg,
		}
		data.mu.RUnlock()

		if err := updateDisplay(display, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateDisplay(dev *ssd1306.Dev, data *DisplayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveHdg && !data.haveSample {
		drawer.Dot = fixed.P(10, 32)
		drawer.DrawBytes([]byte("waiting for data"))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	if data.haveHdg {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("HDG %6.1f %s", data.hdg.Degrees, cardinal(data.hdg.Degrees))))
	}

	if data.haveSample {
		drawer.Dot = fixed.P(0, 30)
		drawer.DrawBytes([]byte(fmt.Sprintf("X%6d Y%6d", data.sample.Mx, data.sample.My)))
		drawer.Dot = fixed.P(0, 43)
		drawer.DrawBytes([]byte(fmt.Sprintf("Z%6d", data.sample.Mz)))
		drawer.Dot = fixed.P(0, 56)
		drawer.DrawBytes([]byte(fmt.Sprintf("|B| %8.1f", data.sample.Norm)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// cardinal maps a heading to one of the 8 compass points.
func cardinal(deg float64) string {
	names := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	idx := int((deg+22.5)/45.0) % 8
	return names[idx]
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Compass Pi"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("field"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
