/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards in-process events to external brokers.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mediaspinner/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		SubjectPrefix: "mediaspinner.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NATSForwarder republishes selected bus events to NATS subjects
// "<prefix>.<event_type>".
type NATSForwarder struct {
	cfg    NATSConfig
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string
}

// NewNATSForwarder connects to NATS and prepares the forwarder.
func NewNATSForwarder(cfg NATSConfig, bus *events.Bus, logger zerolog.Logger) (*NATSForwarder, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSForwarder{
		cfg:    cfg,
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "nats-forwarder").Logger(),
		nodeID: uuid.NewString(),
	}, nil
}

// Run forwards now-playing events until the context is canceled.
func (f *NATSForwarder) Run(ctx context.Context) error {
	sub := f.bus.Subscribe(events.EventNowPlaying)
	defer f.bus.Unsubscribe(events.EventNowPlaying, sub)

	f.logger.Info().Str("url", f.cfg.URL).Msg("event forwarding started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-sub:
			if !ok {
				return nil
			}
			if err := f.publish(events.EventNowPlaying, payload); err != nil {
				f.logger.Warn().Err(err).Msg("failed to forward event")
			}
		}
	}
}

func (f *NATSForwarder) publish(eventType events.EventType, payload events.Payload) error {
	data, err := json.Marshal(natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    f.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", f.cfg.SubjectPrefix, eventType)
	if err := f.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (f *NATSForwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	if err := f.conn.Drain(); err != nil {
		f.conn.Close()
		return err
	}
	return nil
}
