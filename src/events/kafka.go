package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/jobs"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/jpillora/backoff"
)

const kafkaMaxAttempts = 5

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "fastblog"
	cfg.Producer.Return.Successes = true // required by SyncProducer
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, oops.New(err, "failed to connect to kafka")
	}
	return producer, nil
}

/*
Forwards every event on the bus to a Kafka topic. Delivery is best effort:
the queue is the subscription buffer, so a slow broker makes the bus drop
events rather than slowing down requests, and a message that still fails
after five tries is logged and dropped.

Returns a no-op job when Kafka is not configured.
*/
func RunKafkaSink(bus *Bus, cfg config.KafkaConfig) *jobs.Job {
	if !cfg.Enabled() {
		return jobs.Noop("kafka sink")
	}

	producer, err := NewKafkaProducer(cfg.Brokers)
	if err != nil {
		logging.Error().Err(err).Msg("kafka sink disabled")
		return jobs.Noop("kafka sink")
	}
	return runKafkaSink(bus, producer, cfg.Topic, cfg.QueueSize)
}

func runKafkaSink(bus *Bus, producer sarama.SyncProducer, topic string, queueSize int) *jobs.Job {
	job := jobs.New("kafka sink")
	sub := bus.Subscribe("kafka", queueSize)

	go func() {
		defer job.Finish()
		defer func() {
			if err := producer.Close(); err != nil {
				job.Logger.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		defer sub.Close()
		defer logging.LogPanics(&job.Logger)

		job.Logger.Info().Str("topic", topic).Msg("forwarding events to kafka")
		for {
			select {
			case <-job.Canceled():
				return
			case evt := <-sub.C:
				if err := sendWithRetry(job.Ctx, producer, topic, evt); err != nil {
					job.Logger.Error().
						Err(err).
						Str("event", string(evt.Type)).
						Str("id", evt.ID.String()).
						Msg("dropping event")
				}
			}
		}
	}()

	return job
}

func sendWithRetry(ctx context.Context, producer sarama.SyncProducer, topic string, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return oops.New(err, "failed to encode event")
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(evt.Key()),
		Value: sarama.ByteEncoder(payload),
	}

	boff := backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
	}
	for {
		_, _, err = producer.SendMessage(msg)
		if err == nil {
			return nil
		}
		if int(boff.Attempt())+1 >= kafkaMaxAttempts {
			return oops.New(err, "kafka send failed after %d attempts", kafkaMaxAttempts)
		}

		wait := boff.Duration()
		logging.ExtractLogger(ctx).Warn().Err(err).Dur("retry_in", wait).Msg("kafka send failed")
		if err := utils.SleepContext(ctx, wait); err != nil {
			return oops.New(err, "gave up sending event during shutdown")
		}
	}
}
