package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/kchakrav/CRMApp-sub002/pkg/channels/gochannel"
	"github.com/kchakrav/CRMApp-sub002/pkg/channels/kafka"
	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
)

// EventBusConfig selects the event transport.
type EventBusConfig struct {
	Provider     string
	KafkaBrokers []string
	OTELEnabled  bool
}

func NewEventBus(cfg EventBusConfig, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.Config{
			Brokers:       cfg.KafkaBrokers,
			ConsumerGroup: "cg-canvasflow",
			OTELEnabled:   cfg.OTELEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", cfg.Provider)
	}
}
