package polls

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew      = "polls.service.new"
	opCreatePoll      = "polls.create_poll"
	opTransitionPoll  = "polls.transition_poll"
	opCreateQuestion  = "polls.create_question"
	opCreateSession   = "polls.create_session"
	opSubmitResponse  = "polls.submit_response"
	fieldPollID       = "poll_id"
	fieldQuestionID   = "question_id"
	fieldSessionID    = "session_id"
	fieldOptionID     = "answer_option_id"
	defaultCodeTries  = 10
	defaultOrderTries = 3
)

var noOpLogger = zap.NewNop()

// SecretHasher hashes poll-level passwords.
type SecretHasher interface {
	HashSecret(plain string) (string, error)
}

// ServiceConfig describes the dependencies of the poll service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Secrets     SecretHasher
	AccessCodes *AccessCodeGenerator
	Logger      *zap.Logger
}

// Service owns poll lifecycle, question registration, participant sessions and responses.
// It keeps no state between calls; concurrent callers coordinate through the store's constraints.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	secrets     SecretHasher
	accessCodes *AccessCodeGenerator
	logger      *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Secrets == nil {
		return nil, newServiceError(opServiceNew, "missing_secret_hasher", errMissingHasher)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	accessCodes := cfg.AccessCodes
	if accessCodes == nil {
		accessCodes = NewAccessCodeGenerator(nil, defaultCodeTries)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		secrets:     cfg.Secrets,
		accessCodes: accessCodes,
		logger:      logger,
	}, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// findPoll loads a poll by id; a missing row maps to ErrPollNotFound.
func (s *Service) findPoll(tx *gorm.DB, pollID string) (Poll, error) {
	var poll Poll
	err := tx.Where("id = ?", pollID).Take(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Poll{}, ErrPollNotFound
	}
	return poll, err
}

func requireOpen(poll Poll) error {
	if poll.State != PollStateOpen {
		return ErrPollNotOpen
	}
	return nil
}

func (s *Service) withContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("polls service error", attrs...)
}

// storeFailure logs and wraps a store error as a ServiceError.
func (s *Service) storeFailure(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return newServiceError(operation, reason, err)
}
