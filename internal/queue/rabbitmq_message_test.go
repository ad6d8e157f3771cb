package queue

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeued bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}
func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func TestMessage_SettlesOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		settle    func(m *Message) error
		wantAcks  int
		wantNacks int
		requeue   bool
	}{
		{name: "ack", settle: (*Message).Ack, wantAcks: 1},
		{name: "nack requeue", settle: func(m *Message) error { return m.Nack(true) }, wantNacks: 1, requeue: true},
		{name: "dead letter", settle: func(m *Message) error { return m.Nack(false) }, wantNacks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ack := &fakeAcknowledger{}
			job := NewInsightRefreshJob(uuid.New(), 7, 0)
			m := newMessage(job, amqp.Delivery{Acknowledger: ack, DeliveryTag: 42, Redelivered: true})

			if err := tt.settle(m); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if err := m.Ack(); !errors.Is(err, ErrAlreadySettled) {
				t.Errorf("Expected ErrAlreadySettled on second settle, got %v", err)
			}
			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks || ack.requeued != tt.requeue {
				t.Errorf("Expected acks=%d nacks=%d requeue=%v, got %+v", tt.wantAcks, tt.wantNacks, tt.requeue, ack)
			}
			if m.GetJob() != job || !m.Redelivered() {
				t.Error("Expected job and redelivery flag to be exposed")
			}
		})
	}
}
