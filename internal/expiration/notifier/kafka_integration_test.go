//go:build integration

package notifier_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"carinsurance/internal/expiration/notifier"
	"carinsurance/internal/insurance/models"
	"carinsurance/internal/platform/config"
	"carinsurance/internal/platform/kafka"
	"carinsurance/pkg/testutil/containers"
)

type KafkaNotifierSuite struct {
	suite.Suite
	broker *containers.RedpandaContainer
	cfg    config.KafkaConfig
	client *kgo.Client
}

func TestKafkaNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaNotifierSuite))
}

func (s *KafkaNotifierSuite) SetupSuite() {
	ctx := context.Background()
	s.broker = containers.GetManager().GetRedpanda(s.T())
	s.cfg = config.KafkaConfig{
		Brokers:           s.broker.Brokers,
		Topic:             "policy.expirations.test",
		Partitions:        1,
		ReplicationFactor: 1,
		ProduceTimeout:    10 * time.Second,
	}

	client, err := kafka.New(ctx, s.cfg)
	s.Require().NoError(err)
	s.client = client
	s.Require().NoError(kafka.EnsureTopic(ctx, s.client, s.cfg))
	s.Require().NoError(kafka.EnsureTopic(ctx, s.client, s.cfg), "EnsureTopic is idempotent")
}

func (s *KafkaNotifierSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *KafkaNotifierSuite) TestPublishedEventIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	k, err := notifier.NewKafka(s.client, s.cfg.Topic)
	s.Require().NoError(err)

	end := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	n := models.ExpirationNotice{
		Record: models.ExpirationRecord{ID: 11, PolicyID: 5, ExpirationDate: end, ProcessedAt: end.Add(time.Hour)},
		Candidate: models.ExpiredPolicy{
			Policy: models.Policy{ID: 5, CarID: 2, Provider: "Generali", EndDate: &end},
			Car:    models.Car{ID: 2, VIN: "VIN67890", OwnerID: 1},
			Owner:  models.Owner{ID: 1, Name: "Bogdan Ionescu"},
		},
	}
	s.Require().NoError(k.NotifyExpired(ctx, []models.ExpirationNotice{n}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())

	var events []notifier.Event
	fetches.EachRecord(func(r *kgo.Record) {
		var e notifier.Event
		s.Require().NoError(json.Unmarshal(r.Value, &e))
		events = append(events, e)
	})
	s.Require().NotEmpty(events)
	s.Equal(int64(5), events[0].PolicyID)
	s.Equal("VIN67890", events[0].CarVIN)
	s.Equal("2025-08-28", events[0].ExpirationDate)
}
