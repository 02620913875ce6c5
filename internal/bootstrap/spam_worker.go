package bootstrap

import (
	"context"
	"time"

	"spamguard_server/adapter/in/worker"
	"spamguard_server/internal/stream"
)

// Worker ties the pool to the stream consumer for one process.
type Worker struct {
	pool     *worker.Pool
	consumer *stream.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWorker builds the worker runtime over an existing dependency graph.
func NewWorker(deps *Dependencies) *Worker {
	cfg := deps.Config

	handler := worker.NewHandler(
		worker.NewRescoreProcessor(deps.Engine, deps.Log),
		worker.NewRetrainProcessor(deps.Trainer, deps.Registry, deps.Versions, deps.Log),
		deps.Log,
	)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMax > 0 {
		poolConfig.MaxWorkers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.QueueSize = cfg.WorkerQueueSize
	}
	if cfg.RescoreTimeout > 0 {
		poolConfig.JobTimeoutByType[worker.JobRescoreHeavy] = cfg.RescoreTimeout
	}
	if cfg.RetrainTimeout > 0 {
		poolConfig.JobTimeoutByType[worker.JobRetrain] = cfg.RetrainTimeout
	}
	pool := worker.NewPool(handler, poolConfig, deps.Log)

	consumer := stream.NewConsumer(deps.Stream, pool, stream.ConsumerConfig{
		Name:  cfg.WorkerID,
		Block: time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		Count: int64(cfg.ConsumerBatch),
	}, deps.Log)

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		pool:     pool,
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the pool and the stream consumer, then blocks until Stop.
func (w *Worker) Start() error {
	w.pool.Start()
	if err := w.consumer.Start(w.ctx); err != nil {
		w.pool.Stop()
		return err
	}
	<-w.ctx.Done()
	return nil
}

func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}
