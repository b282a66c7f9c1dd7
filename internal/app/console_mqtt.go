package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/config"
	"github.com/relabs-tech/sms_beacon/internal/status"
)

const defaultBroker = "tcp://localhost:1883"

// RunConsoleMQTT subscribes to the beacon and status topics and prints
// every payload until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	broker := cfg.MQTTBroker
	if broker == "" {
		broker = defaultBroker
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Infof("console: connected to MQTT broker at %s", broker)

	subs := map[string]func([]byte) (string, error){
		cfg.TopicBeacon: formatBeacon,
		cfg.TopicStatus: formatStatus,
	}
	for topic, format := range subs {
		token := client.Subscribe(topic, 0, printer(os.Stdout, format, log))
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Infof("console: subscribed to %s", topic)
	}

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

func printer(w io.Writer, format func([]byte) (string, error), log logrus.FieldLogger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		line, err := format(msg.Payload())
		if err != nil {
			log.WithError(err).Warnf("console: %s unmarshal error", msg.Topic())
			return
		}
		fmt.Fprintln(w, line)
	}
}

func formatBeacon(payload []byte) (string, error) {
	var m beacon.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf("[SMS ]  %s  id=%s  %s",
		m.SentAt.Local().Format("15:04:05"), m.ID, m.Text), nil
}

func formatStatus(payload []byte) (string, error) {
	var s status.State
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}

	line := fmt.Sprintf("[STAT]  %s  provider=%t paused=%t", s.Label, s.ProviderEnabled, s.Paused)
	if s.Location != nil {
		line += fmt.Sprintf("  lat=%.6f lon=%.6f acc=%.1fm", s.Location.Latitude, s.Location.Longitude, s.Location.Accuracy)
	}
	return line, nil
}
