package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

// Job names one run of one session.
type Job struct {
	SessionID  string
	Generation uint64
}

// Dispatcher starts a run somewhere: a goroutine or a queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

type DispatcherFunc func(ctx context.Context, job Job) error

func (f DispatcherFunc) Dispatch(ctx context.Context, job Job) error { return f(ctx, job) }

type ServiceConfig struct {
	// RetentionPeriod is how long an untouched session is kept.
	RetentionPeriod time.Duration
}

// Service owns session state transitions and runs the pipeline against them.
type Service struct {
	store      storage.Storage
	pipeline   *Pipeline
	dispatcher Dispatcher
	logger     logger.Logger
	ctxLogger  logger.ContextLogger
	config     ServiceConfig
	now        func() time.Time
}

func NewService(store storage.Storage, pipeline *Pipeline, log logger.Logger, cfg ServiceConfig) *Service {
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = 24 * time.Hour
	}
	log = log.Named("conversion")
	return &Service{
		store:     store,
		pipeline:  pipeline,
		logger:    log,
		ctxLogger: logger.NewContextLogger(log),
		config:    cfg,
		now:       time.Now,
	}
}

// SetDispatcher must be called before Trigger. It is separate from
// NewService because the inline dispatcher needs the service itself.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *Service) CreateSession(ctx context.Context) (*models.Session, error) {
	sess := models.NewSession(uuid.New().String(), s.now())
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.ctxLogger.FromContext(ctx).Info("Session created", logger.String("sessionId", sess.ID))
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// AcquireImage stores img as the session's current image.
func (s *Service) AcquireImage(ctx context.Context, id string, img *models.UploadedImage) (*models.Session, error) {
	sess, err := s.store.Update(ctx, id, func(sess *models.Session) error {
		return sess.SelectImage(img)
	})
	if err != nil {
		return nil, err
	}
	s.ctxLogger.FromContext(ctx).Info("Image selected",
		logger.String("sessionId", id),
		logger.String("mimeType", img.MIMEType),
		logger.Int64("size", img.Size),
		logger.Uint64("generation", sess.Generation),
	)
	return sess, nil
}

// Notify stores a one-shot alert for the session.
func (s *Service) Notify(ctx context.Context, id, msg string) error {
	_, err := s.store.Update(ctx, id, func(sess *models.Session) error {
		sess.Notify(msg)
		return nil
	})
	return err
}

// ClearAlert drops a pending alert once it has been shown.
func (s *Service) ClearAlert(ctx context.Context, id string) error {
	return s.Notify(ctx, id, "")
}

// Trigger starts a run. Without an image it records the alert, dispatches
// nothing and returns models.ErrNoImage.
func (s *Service) Trigger(ctx context.Context, id string) (*models.Session, error) {
	log := s.ctxLogger.FromContext(ctx)

	var gen uint64
	sess, err := s.store.Update(ctx, id, func(sess *models.Session) error {
		g, err := sess.Begin()
		gen = g
		return err
	})
	if errors.Is(err, models.ErrNoImage) {
		if _, uerr := s.store.Update(ctx, id, func(sess *models.Session) error {
			sess.NoteMissingImage()
			return nil
		}); uerr != nil {
			return nil, uerr
		}
		log.Info("Processing requested without an image", logger.String("sessionId", id))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	job := Job{SessionID: id, Generation: gen}
	if s.dispatcher == nil {
		return nil, errors.New("no dispatcher configured")
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		log.Error("Failed to dispatch run",
			logger.String("sessionId", id),
			logger.Uint64("generation", gen),
			logger.Error(err),
		)
		s.finish(context.WithoutCancel(ctx), job, "", err)
		return nil, fmt.Errorf("failed to dispatch run: %w", err)
	}

	log.Info("Run started",
		logger.String("sessionId", id),
		logger.Uint64("generation", gen),
	)
	return sess, nil
}

// Execute performs the run described by job. A superseded job stops at the
// next checkpoint without touching state.
func (s *Service) Execute(ctx context.Context, job Job) error {
	log := s.logger.With(
		logger.String("sessionId", job.SessionID),
		logger.Uint64("generation", job.Generation),
	)

	sess, err := s.store.Get(ctx, job.SessionID)
	if err != nil {
		return err
	}
	if !sess.Current(job.Generation) {
		log.Info("Skipping stale run")
		return nil
	}

	report := func(p int) error {
		_, err := s.store.Update(ctx, job.SessionID, func(sess *models.Session) error {
			return sess.Advance(job.Generation, p)
		})
		return err
	}

	start := s.now()
	out, runErr := s.pipeline.Run(ctx, sess.Image, report)
	if errors.Is(runErr, models.ErrStaleRun) || errors.Is(runErr, storage.ErrNotFound) {
		log.Info("Run superseded", logger.Error(runErr))
		return nil
	}
	if runErr != nil {
		log.Error("Run failed",
			logger.Error(runErr),
			logger.Duration("elapsed", s.now().Sub(start)),
		)
	} else {
		log.Info("Run completed", logger.Duration("elapsed", s.now().Sub(start)))
	}
	// The run ctx may already be cancelled by a timeout or worker shutdown.
	return s.finish(context.WithoutCancel(ctx), job, out, runErr)
}

func (s *Service) finish(ctx context.Context, job Job, out string, runErr error) error {
	_, err := s.store.Update(ctx, job.SessionID, func(sess *models.Session) error {
		if runErr != nil {
			return sess.Fail(job.Generation)
		}
		return sess.Complete(job.Generation, out)
	})
	if errors.Is(err, models.ErrStaleRun) || errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Convert runs the pipeline once without a session.
func (s *Service) Convert(ctx context.Context, img *models.UploadedImage) (string, error) {
	out, err := s.pipeline.Run(ctx, img, nil)
	if err != nil {
		s.ctxLogger.FromContext(ctx).Error("Conversion failed", logger.Error(err))
		return "", err
	}
	return out, nil
}

// Cleanup drops sessions idle longer than the retention period.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.store.CleanupBefore(ctx, s.now().Add(-s.config.RetentionPeriod))
}
