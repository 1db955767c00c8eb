package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/straye-as/pipeline-api/internal/config"
	"go.uber.org/zap"
)

const (
	// QueueMail is the asynq queue notification emails go through
	QueueMail = "mail"
	// TaskTypeSendEmail is the task type for sending a rendered email
	TaskTypeSendEmail = "mail:send"
)

// NewSendEmailTask constructs an asynq task for a rendered message
func NewSendEmailTask(msg Message, maxRetry int) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueMail), asynq.MaxRetry(maxRetry)), nil
}

// QueueMailer renders emails and enqueues them for the worker to deliver
type QueueMailer struct {
	client   *asynq.Client
	maxRetry int
	logger   *zap.Logger
}

func NewQueueMailer(opts asynq.RedisConnOpt, cfg *config.MailConfig, logger *zap.Logger) *QueueMailer {
	return &QueueMailer{client: asynq.NewClient(opts), maxRetry: cfg.MaxRetry, logger: logger}
}

func (m *QueueMailer) Send(ctx context.Context, tmpl Template, to []string, data map[string]interface{}) error {
	msg, err := renderMessage(tmpl, to, data)
	if err != nil {
		return err
	}
	task, err := NewSendEmailTask(msg, m.maxRetry)
	if err != nil {
		return fmt.Errorf("failed to build email task: %w", err)
	}
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	m.logger.Debug("email enqueued",
		zap.String("task_id", info.ID),
		zap.String("template", string(tmpl)),
		zap.Int("recipients", len(to)),
	)
	return nil
}

// Close releases client resources
func (m *QueueMailer) Close() error {
	return m.client.Close()
}

// TaskHandler delivers queued emails
type TaskHandler struct {
	sender Sender
	logger *zap.Logger
}

func NewTaskHandler(sender Sender, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{sender: sender, logger: logger}
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil || len(msg.To) == 0 {
		h.logger.Error("dropping malformed email task", zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("malformed email payload: %w", asynq.SkipRetry)
	}
	if err := h.sender.Deliver(ctx, msg); err != nil {
		h.logger.Warn("email delivery failed", zap.String("template", string(msg.Template)), zap.Error(err))
		return err
	}
	return nil
}

// Worker runs the asynq server delivering queued emails
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewWorker(opts asynq.RedisConnOpt, cfg *config.MailConfig, handler *TaskHandler, logger *zap.Logger) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	srv := asynq.NewServer(opts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueMail: 1},
		Logger:      logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeSendEmail, handler)
	return &Worker{server: srv, mux: mux, logger: logger}
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start mail worker: %w", err)
	}
	w.logger.Info("Mail worker started", zap.String("queue", QueueMail))

	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("Mail worker stopped")
	return nil
}
