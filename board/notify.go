package board

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"board-api/domain"
)

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Failure(string) {}

type noopPublisher struct{}

func (noopPublisher) Publish(domain.BoardEvent) {}

// LogNotifier emits notifications as structured log lines.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Success(msg string) {
	n.logger().WithField("kind", "success").Info(msg)
}

func (n LogNotifier) Failure(msg string) {
	n.logger().WithField("kind", "failure").Warn(msg)
}

func (n LogNotifier) logger() *log.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return log.StandardLogger()
}

// publishEvent builds and hands off a board event. Payload marshal failures
// are logged and dropped; events are best-effort.
func (c *Controller) publishEvent(eventType, taskID string, payload any) {
	ev := domain.BoardEvent{
		ID:     uuid.NewString(),
		TaskID: taskID,
		Type:   eventType,
		Time:   time.Now().UnixNano(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.WithError(err).WithField("event", eventType).Warn("drop board event")
			return
		}
		ev.Data = data
	}
	c.publish.Publish(ev)
}
