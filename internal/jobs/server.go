package jobs

import (
	"context"

	"github.com/saxon-wu/living/internal/jobs/tasks"
	"github.com/saxon-wu/living/internal/logging"

	"github.com/hibiken/asynq"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(redisAddr string, concurrency int, renderer tasks.VariantRenderer) *Server {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				DefaultQueue: 6,
				MediaQueue:   4,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logging.Error(ctx).
					Err(err).
					Str("task_type", task.Type()).
					Msg("task failed")
			}),
		},
	)

	return &Server{
		server: server,
		mux:    NewMux(renderer),
	}
}

// NewMux routes every task type to its handler.
func NewMux(renderer tasks.VariantRenderer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeCommentNotification, tasks.HandleCommentNotification)
	mux.Handle(tasks.TypeImageVariant, tasks.NewImageVariantHandler(renderer))
	return mux
}

func (s *Server) Start() error {
	logging.Logger().Info().Msg("starting asynq worker")
	return s.server.Start(s.mux)
}

func (s *Server) Shutdown() {
	logging.Logger().Info().Msg("shutting down asynq worker")
	s.server.Shutdown()
}
