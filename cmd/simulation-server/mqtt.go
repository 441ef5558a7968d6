package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"speakcity/shared"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// publisher is the part of mqtt.Client the metrics reporter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MetricsPublisher periodically publishes dashboard counters to a broker.
type MetricsPublisher struct {
	client  publisher
	topic   string
	timeout time.Duration
}

// ConnectMetricsPublisher connects to broker and returns a publisher for
// topic together with the client so the caller can disconnect it.
func ConnectMetricsPublisher(broker, topic string) (*MetricsPublisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("speakcity-sim-" + fmt.Sprint(time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("connect mqtt %s: %w", broker, token.Error())
	}
	log.WithFields(log.Fields{"broker": broker, "topic": topic}).Info("Publishing metrics over MQTT")
	return NewMetricsPublisher(client, topic), client, nil
}

// NewMetricsPublisher wraps an already connected client.
func NewMetricsPublisher(client publisher, topic string) *MetricsPublisher {
	return &MetricsPublisher{client: client, topic: topic, timeout: 2 * time.Second}
}

// Publish sends one metrics sample at QoS 0, retained so late subscribers
// see the latest values.
func (p *MetricsPublisher) Publish(m shared.Metrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}

// Run publishes metrics from source every interval until ctx is done.
func (p *MetricsPublisher) Run(ctx context.Context, interval time.Duration, source func() shared.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Publish(source()); err != nil {
				log.Warnf("Metrics publish failed: %v", err)
			}
		}
	}
}
