package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TopicSpec describes the check event topic. Zero values fall back to a
// single partition on a single replica.
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

var ErrTopicNotReady = errors.New("kafka topic not ready")

// EnsureTopic creates the topic through the cluster controller and waits until
// every partition has an elected leader. An existing topic is not an error.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if spec.NumPartitions <= 0 {
		spec.NumPartitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	if spec.MaxWait <= 0 {
		spec.MaxWait = 30 * time.Second
	}
	log = log.With(zap.String("topic", spec.Name))

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		log.Warn("kafka dial failed", zap.Strings("brokers", brokers), zap.Error(err))
		return err
	}
	defer conn.Close()

	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		return fmt.Errorf("kafka dial controller: %w", err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
	switch {
	case errors.Is(err, kafka.TopicAlreadyExists):
		log.Debug("topic exists")
	case err != nil:
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	default:
		log.Info("topic created", zap.Int("partitions", spec.NumPartitions), zap.Int("rf", spec.ReplicationFactor))
	}

	return waitLeaders(ctx, conn, spec, log)
}

func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}
	var last error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		last = err
	}
	return nil, last
}

func waitLeaders(ctx context.Context, conn *kafka.Conn, spec TopicSpec, log *zap.Logger) error {
	backoff := 200 * time.Millisecond
	const maxBackoff = 2 * time.Second

	deadline := time.Now().Add(spec.MaxWait)
	for time.Now().Before(deadline) {
		ps, err := conn.ReadPartitions(spec.Name)
		if err == nil && len(ps) > 0 && allHaveLeader(ps) {
			log.Info("topic ready", zap.Int("partitions", len(ps)))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
	return fmt.Errorf("%w: %s after %s", ErrTopicNotReady, spec.Name, spec.MaxWait)
}

func allHaveLeader(ps []kafka.Partition) bool {
	for _, p := range ps {
		if p.Leader.ID < 0 {
			return false
		}
	}
	return true
}
