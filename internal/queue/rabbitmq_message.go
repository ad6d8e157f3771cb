package queue

import (
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrAlreadySettled is returned when a delivery is acked or nacked twice
var ErrAlreadySettled = errors.New("message already settled")

// Message is a decoded job together with the broker delivery it arrived on. A message is
// settled exactly once, by Ack or Nack.
type Message struct {
	Job *Job

	mu       sync.Mutex
	delivery amqp.Delivery
	settled  bool
}

func newMessage(job *Job, delivery amqp.Delivery) *Message {
	return &Message{Job: job, delivery: delivery}
}

func (m *Message) settle(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return ErrAlreadySettled
	}
	m.settled = true
	return fn()
}

// Ack removes the job from the queue
func (m *Message) Ack() error {
	return m.settle(func() error { return m.delivery.Ack(false) })
}

// Nack returns the job to the queue, or dead-letters it when requeue is false
func (m *Message) Nack(requeue bool) error {
	return m.settle(func() error { return m.delivery.Nack(false, requeue) })
}

// GetJob returns the decoded job
func (m *Message) GetJob() *Job {
	return m.Job
}

// Redelivered reports whether the broker delivered this job before
func (m *Message) Redelivered() bool {
	return m.delivery.Redelivered
}
