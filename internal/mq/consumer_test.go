package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestConsumer_StartWithoutConnection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	consumer := NewConsumer(nil, logger, ConsumerConfig{
		Queue: string(QueueRunsPending),
		Handler: func(ctx context.Context, msg *Delivery) error {
			return nil
		},
	})

	err := consumer.Start(context.Background())
	if !errors.Is(err, ErrNoConnection) {
		t.Fatalf("expected ErrNoConnection, got %v", err)
	}

	// Stop без Start не должен падать
	consumer.Stop()
}

func TestParsePayload(t *testing.T) {
	raw, err := json.Marshal(ItemCompletedPayload{
		ItemName: "model",
		Status:   "SUCCEEDED",
		Attempt:  2,
	})
	if err != nil {
		t.Fatal(err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	msg := &Message{Type: MessageTypeItemCompleted, Payload: generic}

	payload, err := ParsePayload[ItemCompletedPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ItemName != "model" || payload.Status != "SUCCEEDED" || payload.Attempt != 2 {
		t.Errorf("payload mismatch: %+v", payload)
	}
}
