package notification

import (
	"encoding/json"
	"time"

	"ecopoints-ledger/pkg/taskname"

	"github.com/hibiken/asynq"
)

type DeliverPayload struct {
	ID        string    `json:"id"`
	Message   Message   `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type BroadcastPayload struct {
	ID        string           `json:"id"`
	Request   BroadcastRequest `json:"request"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewDeliverTask(p DeliverPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationDeliver, b), nil
}

func NewBroadcastTask(p BroadcastPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.NotificationBroadcast, b), nil
}
