// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

const publishTimeout = 250 * time.Millisecond

// PoseMessage is the payload on the pose topic.
type PoseMessage struct {
	orientation.Pose
	Algorithm string    `json:"algorithm"`
	Time      time.Time `json:"time"`
}

// tokenPublisher is the part of mqtt.Client the snapshot publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher forwards acquisition snapshots to the broker: the pose of
// every snapshot on one topic and snapshots carrying history on another,
// both retained.
type MQTTPublisher struct {
	client        tokenPublisher
	snapshotTopic string
	poseTopic     string
}

// NewMQTTPublisher publishes through client. An empty topic is skipped.
func NewMQTTPublisher(client tokenPublisher, snapshotTopic, poseTopic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, snapshotTopic: snapshotTopic, poseTopic: poseTopic}
}

// Publish implements acquisition.Publisher. Errors are logged; the loop
// keeps running when the broker is away.
func (p *MQTTPublisher) Publish(s acquisition.Snapshot) {
	if p.snapshotTopic != "" && s.HasHistory {
		if payload, err := json.Marshal(s); err != nil {
			log.Printf("mqtt: snapshot marshal error: %v", err)
		} else {
			p.send(p.snapshotTopic, payload)
		}
	}

	if p.poseTopic != "" {
		msg := PoseMessage{Pose: s.Latest, Algorithm: s.AlgorithmName, Time: s.Time}
		if payload, err := json.Marshal(msg); err != nil {
			log.Printf("mqtt: pose marshal error: %v", err)
		} else {
			p.send(p.poseTopic, payload)
		}
	}
}

func (p *MQTTPublisher) send(topic string, payload []byte) {
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("mqtt: publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish error (%s): %v", topic, err)
	}
}

// connectMQTT connects a client and waits for the broker to accept it.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to broker at %s as %s", broker, clientID)
	return client, nil
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}

// parseAlgorithmPayload accepts "2", "kalman", or {"algorithm": "2"}.
func parseAlgorithmPayload(payload []byte) (orientation.Algorithm, error) {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var body struct {
			Algorithm json.RawMessage `json:"algorithm"`
		}
		if err := json.Unmarshal([]byte(text), &body); err != nil {
			return 0, fmt.Errorf("algorithm payload: %w", err)
		}
		var name string
		if err := json.Unmarshal(body.Algorithm, &name); err == nil {
			text = name
		} else {
			text = string(body.Algorithm)
		}
	}
	return orientation.ParseAlgorithm(text)
}

// algorithmHandler applies selection events from the algorithm topic.
func algorithmHandler(selector *orientation.Selector) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		algo, err := parseAlgorithmPayload(msg.Payload())
		if err != nil {
			log.Printf("mqtt: ignoring algorithm selection on %s: %v", msg.Topic(), err)
			return
		}
		selector.Set(algo)
		log.Printf("mqtt: selected algorithm %s", algo)
	}
}
