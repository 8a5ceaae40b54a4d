package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/notify"
	"github.com/iliyamo/movie-booking/internal/queue"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/verification"
)

func senders(cfg config.Config, log *logrus.Logger) (*notify.EmailSender, *notify.SMSSender) {
	n := cfg.Notify
	email := notify.NewEmailSender(notify.SMTPSettings{
		Host:     n.SMTPHost,
		Port:     n.SMTPPort,
		Username: n.SMTPUsername,
		Password: n.SMTPPassword,
		From:     n.SMTPFrom,
	}, log, cfg.IsDev())
	sms := notify.NewSMSSender(notify.SMSSettings{
		URL:     n.SMSURL,
		APIKey:  n.SMSAPIKey,
		Sender:  n.SMSSender,
		Timeout: n.SMSTimeout,
	}, log, cfg.IsDev())
	return email, sms
}

// buildGate picks the passcode store and parses the channels checkout has
// to verify. The memory store is returned so the purge job can reach it.
func buildGate(cfg config.Config, rdb *redis.Client, email, sms verification.Sender, log *logrus.Logger) (*verification.Gate, []verification.Channel, *verification.MemoryStore, error) {
	var channels []verification.Channel
	for _, raw := range cfg.Booking.VerifyChannels {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ch, err := verification.ParseChannel(raw)
		if err != nil {
			return nil, nil, nil, err
		}
		channels = append(channels, ch)
	}

	var (
		store verification.Store
		mem   *verification.MemoryStore
	)
	if rdb != nil {
		store = verification.NewRedisStore(rdb, cfg.OTP.Prefix)
	} else {
		mem = verification.NewMemoryStore()
		store = mem
	}

	gate := verification.NewGate(store, map[verification.Channel]verification.Sender{
		verification.ChannelEmail: email,
		verification.ChannelPhone: sms,
	}, verification.Options{
		TTL:         cfg.OTP.TTL,
		VerifiedTTL: cfg.OTP.VerifiedTTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, log)
	return gate, channels, mem, nil
}

// buildDispatcher returns what the booking service publishes to. With a
// broker transport the final email/SMS delivery runs in a consumer started
// here and stopped with ctx.
func buildDispatcher(ctx context.Context, cfg config.Config, direct notify.Dispatcher, log *logrus.Logger) (notify.Dispatcher, func(), error) {
	n := cfg.Notify

	switch strings.ToLower(n.Transport) {
	case "", "direct":
		return direct, func() {}, nil
	case "amqp":
		consumer := queue.NewAMQPConsumer(n.AMQPURL, n.AMQPQueue, direct, log)
		go runConsumer(ctx, "amqp", consumer.Run, log)
		return queue.NewAMQPPublisher(n.AMQPURL, n.AMQPQueue, log), func() {}, nil
	case "kafka":
		consumer := queue.NewKafkaConsumer(n.KafkaBrokers, n.KafkaTopic, n.KafkaGroup, direct, log)
		go runConsumer(ctx, "kafka", consumer.Run, log)
		pub := queue.NewKafkaPublisher(n.KafkaBrokers, n.KafkaTopic)
		return pub, func() {
			if err := pub.Close(); err != nil {
				log.WithError(err).Warn("kafka writer close")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown NOTIFY_TRANSPORT %q", n.Transport)
	}
}

func runConsumer(ctx context.Context, name string, run func(context.Context) error, log *logrus.Logger) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).WithField("transport", name).Error("notification consumer stopped")
	}
}

// startJobs schedules housekeeping: expired refresh tokens are pruned
// hourly and the in-memory passcode store, when used, is swept.
func startJobs(cfg config.Config, tokens *repository.TokenRepo, mem *verification.MemoryStore, log *logrus.Logger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := tokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				log.WithError(err).Warn("prune refresh tokens")
				return
			}
			log.WithField("deleted", n).Debug("pruned refresh tokens")
		}),
	)
	if err != nil {
		return nil, err
	}
	if mem != nil {
		_, err = s.NewJob(
			gocron.DurationJob(cfg.OTP.PurgeEvery),
			gocron.NewTask(func() {
				if n := mem.Purge(); n > 0 {
					log.WithField("purged", n).Debug("expired passcodes")
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}
	s.Start()
	return s, nil
}
