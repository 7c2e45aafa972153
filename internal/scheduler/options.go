package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
)

type options struct {
	Logger     *logrus.Logger
	Cron       *cron.Cron
	Parser     cron.Parser
	Location   *time.Location
	Warmer     Warmer
	Broker     client.SessionBroker
	Sweeper    Sweeper
	JobTimeout time.Duration
}

// Option applies configuration to the scheduler service.
type Option func(*options)

func defaultOptions() options {
	return options{
		Logger:     logrus.StandardLogger(),
		Parser:     cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		Location:   time.UTC,
		JobTimeout: 5 * time.Minute,
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) {
		o.Cron = c
	}
}

// WithCronParser allows replacing the cron expression parser.
func WithCronParser(p cron.Parser) Option {
	return func(o *options) {
		o.Parser = p
	}
}

// WithLocation sets the scheduler timezone location.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.Location = loc
	}
}

// WithWarmer enables the cache warm-up job. broker supplies the tool usage
// credential the warm-up runs with.
func WithWarmer(w Warmer, broker client.SessionBroker) Option {
	return func(o *options) {
		o.Warmer = w
		o.Broker = broker
	}
}

// WithSweeper enables the memory cache sweep job.
func WithSweeper(s Sweeper) Option {
	return func(o *options) {
		o.Sweeper = s
	}
}

// WithJobTimeout bounds a single job run.
func WithJobTimeout(d time.Duration) Option {
	return func(o *options) {
		o.JobTimeout = d
	}
}
