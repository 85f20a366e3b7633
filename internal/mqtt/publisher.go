// Package mqtt publishes punch events to an MQTT broker for hosts that
// consume attendance asynchronously. Optional; the gateway runs without it.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"iclock-gateway/internal/domain"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Publisher is an AttendanceSink implementation that publishes one JSON
// message per accepted punch.
type Publisher struct {
	client paho.Client
	topic  string
	logger *zap.Logger
}

func NewPublisher(opts Options, logger *zap.Logger) (*Publisher, error) {
	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(true)

	client := paho.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, topic: opts.Topic, logger: logger}, nil
}

// PunchRecorded publishes the punch. Failures are logged and dropped; the
// protocol response to the device must not depend on broker health.
func (p *Publisher) PunchRecorded(_ context.Context, punch domain.Attendance) {
	payload, err := json.Marshal(punch.ToJSON())
	if err != nil {
		p.logger.Error("failed to marshal punch event", zap.Error(err))
		return
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		p.logger.Error("failed to publish punch event",
			zap.String("topic", p.topic),
			zap.Error(token.Error()),
		)
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
