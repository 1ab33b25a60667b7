package app

import (
	"context"
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
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_viewer/internal/config"
)

// DisplayData holds the latest pose received for display.
type DisplayData struct {
	mu sync.RWMutex

	pose     PoseMessage
	havePose bool
}

func (d *DisplayData) set(p PoseMessage) {
	d.mu.Lock()
	d.pose = p
	d.havePose = true
	d.mu.Unlock()
}

func (d *DisplayData) get() (PoseMessage, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pose, d.havePose
}

// RunDisplay shows roll, pitch, yaw and the active algorithm on an SSD1306
// OLED until ctx is done.
func RunDisplay(ctx context.Context) error {
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

	dev, err := ssd1306.NewI2C(fixedAddrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicPose, poseHandler(data)); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return dev.Halt()
		case <-ticker.C:
			pose, ok := data.get()
			if err := dev.Draw(dev.Bounds(), renderPose(pose, ok), image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// fixedAddrBus sends every transaction to addr, so a controller strapped to
// a non-default address can be driven by ssd1306.NewI2C.
type fixedAddrBus struct {
	i2c.Bus
	addr uint16
}

func (b fixedAddrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func poseHandler(data *DisplayData) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var p PoseMessage
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("display: pose unmarshal error: %v", err)
			return
		}
		data.set(p)
	}
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, text string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func renderPose(p PoseMessage, haveData bool) *image1bit.VerticalLSB {
	img, d := newCanvas()

	if !haveData {
		drawLine(d, 0, 26, "Orientation")
		drawLine(d, 0, 39, "Waiting...")
		return img
	}

	drawLine(d, 0, 13, fmt.Sprintf("R: %7.1f", p.Roll))
	drawLine(d, 0, 26, fmt.Sprintf("P: %7.1f", p.Pitch))
	drawLine(d, 0, 39, fmt.Sprintf("Y: %7.1f", p.Yaw))
	drawLine(d, 0, 56, p.Algorithm)
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 26, "Inertial Viewer")
	drawLine(d, 25, 43, "Serial IMU")
	return img
}
