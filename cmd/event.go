package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/averhoeven/roster-management/internal/core/events"
	"github.com/averhoeven/roster-management/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events, monitor event bus, inspect handlers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var eventData string

// registerAuditSubscribers attaches the audit trail to every roster event
// type. Roster mutations and reconciliations land in the structured log;
// sync warnings log at warn level so degraded role mirroring is visible
// without failing the operation that caused it.
func registerAuditSubscribers(bus *events.EventBus, log *slog.Logger) {
	audit := func(ctx context.Context, event events.Event) error {
		log.Info("audit",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}

	for _, eventType := range []string{
		events.EventTypeMemberJoined,
		events.EventTypeMemberPromoted,
		events.EventTypeMemberDemoted,
		events.EventTypeMemberRemoved,
		events.EventTypeMemberRestored,
		events.EventTypeRankReconciled,
	} {
		bus.Subscribe(eventType, audit)
	}

	bus.Subscribe(events.EventTypeSyncWarning, func(ctx context.Context, event events.Event) error {
		log.Warn("role sync degraded",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})
}

func publishTestEvent(eventType string) {
	log := logger.LoggerWrapper()

	eventBus := events.NewEventBus(log)
	registerAuditSubscribers(eventBus, log)

	testEvent := events.BaseEvent{
		ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": eventData,
			"source":  "cli-command",
		},
	}

	log.Info("publishing test event", "event_type", eventType, "event_id", testEvent.ID)

	ctx := context.Background()
	if err := eventBus.Publish(ctx, testEvent); err != nil {
		log.Error("failed to publish event", "error", err)
		return
	}

	time.Sleep(100 * time.Millisecond)
	log.Info("test event published successfully")
}

func init() {

	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
