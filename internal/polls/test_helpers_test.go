package polls

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedTestTime = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

type prefixHasher struct{}

func (prefixHasher) HashSecret(plain string) (string, error) {
	return "hashed:" + plain, nil
}

// failingIDProvider issues UUIDs until its budget is spent, then fails.
type failingIDProvider struct {
	remaining atomic.Int64
	next      IDProvider
}

func newFailingIDProvider(budget int64) *failingIDProvider {
	provider := &failingIDProvider{next: NewUUIDProvider()}
	provider.remaining.Store(budget)
	return provider
}

func (p *failingIDProvider) NewID() (string, error) {
	if p.remaining.Add(-1) < 0 {
		return "", errors.New("id source exhausted")
	}
	return p.next.NewID()
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "polls.db") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

type testServiceOption func(*ServiceConfig)

func withLogger(log *zap.Logger) testServiceOption {
	return func(cfg *ServiceConfig) { cfg.Logger = log }
}

func withIDProvider(provider IDProvider) testServiceOption {
	return func(cfg *ServiceConfig) { cfg.IDProvider = provider }
}

func withAccessCodes(generator *AccessCodeGenerator) testServiceOption {
	return func(cfg *ServiceConfig) { cfg.AccessCodes = generator }
}

func mustService(t *testing.T, options ...testServiceOption) *Service {
	t.Helper()
	cfg := ServiceConfig{
		Database:   openTestDatabase(t),
		Clock:      func() time.Time { return fixedTestTime },
		IDProvider: NewUUIDProvider(),
		Secrets:    prefixHasher{},
	}
	for _, option := range options {
		option(&cfg)
	}
	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func mustPoll(t *testing.T, service *Service, title string) Poll {
	t.Helper()
	poll, err := service.CreatePoll(context.Background(), CreatePollInput{Title: title})
	if err != nil {
		t.Fatalf("create poll failed: %v", err)
	}
	return poll
}

func mustOpenPoll(t *testing.T, service *Service, title string) Poll {
	t.Helper()
	poll := mustPoll(t, service, title)
	opened, err := service.TransitionPoll(context.Background(), poll.ID, PollStateOpen)
	if err != nil {
		t.Fatalf("open poll failed: %v", err)
	}
	return opened
}

func mustQuestion(t *testing.T, service *Service, pollID string, options ...string) Question {
	t.Helper()
	input := CreateQuestionInput{PollID: pollID, QuestionText: "Favourite colour?"}
	for _, option := range options {
		input.AnswerOptions = append(input.AnswerOptions, AnswerOptionInput{OptionText: option})
	}
	question, err := service.CreateQuestion(context.Background(), input)
	if err != nil {
		t.Fatalf("create question failed: %v", err)
	}
	return question
}

func mustSession(t *testing.T, service *Service, pollID, token string) SessionOutcome {
	t.Helper()
	outcome, err := service.CreateSession(context.Background(), CreateSessionInput{PollID: pollID, SessionToken: token})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return outcome
}

func countRows(t *testing.T, service *Service, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	if err := service.db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func expectValidationMessages(t *testing.T, err error, expected ...string) {
	t.Helper()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if !slices.Equal(validationErr.Messages, expected) {
		t.Fatalf("expected messages %q, got %q", expected, validationErr.Messages)
	}
}

func expectServiceErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected a service error, got %v", err)
	}
	if serviceErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, serviceErr.Code())
	}
}
