package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/pkg/logger"
)

// Worker processes async intake tasks from the queue
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *IntakeTask) error
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a new worker instance
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Infof("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// SetProcessor sets the function to process intake tasks
func (w *Worker) SetProcessor(processor func(context.Context, *IntakeTask) error) {
	w.processor = processor
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeIntake, w.handleIntakeTask)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Infof("[Worker] Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Worker stopped")
}

func (w *Worker) handleIntakeTask(ctx context.Context, t *asynq.Task) error {
	var task IntakeTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logger.Infof("[Worker] Failed to unmarshal intake task: %v", err)
		return err
	}

	if w.processor == nil {
		logger.Infof("[Worker] No processor set, dropping task %s", task.TaskID)
		return nil
	}

	logger.Infof("[Worker] Processing intake task %s for channel %s", task.TaskID, task.ChannelID)
	return w.processor(ctx, &task)
}
