package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
	"github.com/relabs-tech/inertial_viewer/internal/config"
)

// RunConsoleMQTT prints every pose and snapshot the viewer publishes until
// ctx is done.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicPose, consoleHandler(os.Stdout, formatPose)); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	if err := subscribe(client, cfg.TopicSnapshot, consoleHandler(os.Stdout, formatSnapshot)); err != nil {
		return fmt.Errorf("console: %w", err)
	}

	log.Println("console: waiting for messages, Ctrl+C to exit")
	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func consoleHandler(w io.Writer, format func([]byte) (string, error)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		line, err := format(msg.Payload())
		if err != nil {
			log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
			return
		}
		fmt.Fprintln(w, line)
	}
}

func formatPose(payload []byte) (string, error) {
	var p PoseMessage
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", err
	}
	return fmt.Sprintf("[POSE]  ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f  (%s)",
		p.Roll, p.Pitch, p.Yaw, p.Algorithm), nil
}

func formatSnapshot(payload []byte) (string, error) {
	var s acquisition.Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	r := s.LatestRaw
	return fmt.Sprintf("[RAW]   ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d  window=%d/%d accepted=%d skipped=%d",
		r.Ax, r.Ay, r.Az, r.Gx, r.Gy, r.Gz,
		s.History.Len(), s.Capacity, s.Counters.Accepted, s.Counters.Skipped), nil
}
