package jobs

import (
	"runtime/debug"
	"time"

	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/media"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically removes stale image variants from the cache directory.
type Sweeper struct {
	cron   *cron.Cron
	logger zerolog.Logger
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	logger := logging.Component("cron")
	cl := cronLogger{logger: logger}

	return &Sweeper{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(
				recoverJob(logger),
				cron.SkipIfStillRunning(cl),
			),
		),
		logger: logger,
		dir:    dir,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Register schedules the sweep; spec is a standard five-field cron expression or a descriptor.
func (s *Sweeper) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.logged); err != nil {
		return err
	}
	s.logger.Info().Str("schedule", spec).Str("dir", s.dir).Msg("variant cache sweep registered")
	return nil
}

func (s *Sweeper) logged() {
	start := time.Now()
	log := s.logger.With().Str("execution_id", uuid.NewString()).Logger()

	removed, err := s.RunOnce()
	if err != nil {
		log.Error().Err(err).Int("removed", removed).Msg("variant cache sweep failed")
		return
	}
	log.Info().Int("removed", removed).Dur("duration", time.Since(start)).Msg("variant cache swept")
}

func (s *Sweeper) RunOnce() (int, error) {
	return media.SweepCache(s.dir, s.maxAge, s.now())
}

func (s *Sweeper) Start() {
	s.logger.Info().Msg("cron scheduler started")
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("cron scheduler stopped")
}

func recoverJob(logger zerolog.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Str("stack_trace", string(debug.Stack())).
						Msg("cron job panicked")
				}
			}()
			j.Run()
		})
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
