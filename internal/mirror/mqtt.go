// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mirror republishes beacon messages and status changes to an MQTT
// broker so they can be watched off the device.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/config"
	"github.com/relabs-tech/sms_beacon/internal/status"
)

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the mirror uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes retained JSON payloads to the beacon and status topics.
type MQTT struct {
	client      publisher
	disconnect  func()
	topicBeacon string
	topicStatus string
	log         logrus.FieldLogger
}

var _ beacon.Sink = (*MQTT)(nil)

// Connect dials the configured broker.
func Connect(cfg *config.Config, log logrus.FieldLogger) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	m := newMQTT(client, cfg.TopicBeacon, cfg.TopicStatus, log)
	m.disconnect = func() { client.Disconnect(250) }
	return m, nil
}

func newMQTT(client publisher, topicBeacon, topicStatus string, log logrus.FieldLogger) *MQTT {
	return &MQTT{
		client:      client,
		disconnect:  func() {},
		topicBeacon: topicBeacon,
		topicStatus: topicStatus,
		log:         log,
	}
}

// Deliver publishes the message as {id, message, sent_at}.
func (m *MQTT) Deliver(_ context.Context, msg beacon.Message) error {
	return m.publish(m.topicBeacon, msg)
}

// WatchStatus publishes the board's state now and on every change until
// ctx is cancelled.
func (m *MQTT) WatchStatus(ctx context.Context, board *status.Board) {
	updates, cancel := board.Subscribe()
	defer cancel()

	if err := m.publish(m.topicStatus, board.State()); err != nil {
		m.log.WithError(err).Warn("status publish failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			if err := m.publish(m.topicStatus, st); err != nil {
				m.log.WithError(err).Warn("status publish failed")
			}
		}
	}
}

func (m *MQTT) Close() {
	m.disconnect()
}

func (m *MQTT) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	token := m.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
