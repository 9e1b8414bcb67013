package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"carinsurance/internal/insurance/models"
	"carinsurance/pkg/requestcontext"
)

// EventTypePolicyExpired identifies expiration events on the topic.
const EventTypePolicyExpired = "policy.expired"

// Event is the JSON payload published for each committed expiration record.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	PassID         string    `json:"pass_id,omitempty"`
	RecordID       int64     `json:"record_id"`
	PolicyID       int64     `json:"policy_id"`
	Provider       string    `json:"provider"`
	ExpirationDate string    `json:"expiration_date"`
	ProcessedAt    time.Time `json:"processed_at"`
	CarID          int64     `json:"car_id"`
	CarVIN         string    `json:"car_vin"`
	OwnerID        int64     `json:"owner_id"`
	OwnerName      string    `json:"owner_name"`
	OwnerEmail     string    `json:"owner_email,omitempty"`
}

// NewEvent builds the event for one notice.
func NewEvent(ctx context.Context, n models.ExpirationNotice) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           EventTypePolicyExpired,
		PassID:         requestcontext.PassID(ctx),
		RecordID:       int64(n.Record.ID),
		PolicyID:       int64(n.Record.PolicyID),
		Provider:       n.Candidate.Policy.Provider,
		ExpirationDate: models.FormatDate(n.Record.ExpirationDate),
		ProcessedAt:    n.Record.ProcessedAt,
		CarID:          int64(n.Candidate.Car.ID),
		CarVIN:         n.Candidate.Car.VIN,
		OwnerID:        int64(n.Candidate.Owner.ID),
		OwnerName:      n.Candidate.Owner.Name,
		OwnerEmail:     n.Candidate.Owner.Email,
	}
}

// Producer is the subset of *kgo.Client the notifier uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Kafka publishes expiration events keyed by policy ID so every event for a
// policy lands on the same partition.
type Kafka struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) (*Kafka, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &Kafka{producer: producer, topic: topic}, nil
}

// NotifyExpired publishes one event per notice and waits for the broker to
// acknowledge them all.
func (k *Kafka) NotifyExpired(ctx context.Context, notices []models.ExpirationNotice) error {
	if len(notices) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(notices))
	for _, n := range notices {
		payload, err := json.Marshal(NewEvent(ctx, n))
		if err != nil {
			return fmt.Errorf("encode expiration event for policy %d: %w", n.Record.PolicyID, err)
		}
		records = append(records, &kgo.Record{
			Topic: k.topic,
			Key:   []byte(strconv.FormatInt(int64(n.Record.PolicyID), 10)),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(EventTypePolicyExpired)},
			},
		})
	}
	if err := k.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("publish expiration events: %w", err)
	}
	return nil
}
