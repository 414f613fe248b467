package polls

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateQuestion appends a question, and its options when supplied, to a poll.
// The question and its options are written in one transaction so a failed option insert
// never leaves a question behind. The caller must already have verified the admin credential.
func (s *Service) CreateQuestion(ctx context.Context, input CreateQuestionInput) (Question, error) {
	if err := input.validate(); err != nil {
		return Question{}, err
	}

	chartType := ChartTypeHorizontalBar
	if input.ChartType != "" {
		chartType = ChartType(input.ChartType)
	}

	var created Question
	for attempt := 1; ; attempt++ {
		question, err := s.insertQuestion(ctx, input, chartType)
		if err == nil {
			created = question
			break
		}

		var serviceErr *ServiceError
		switch {
		case errors.Is(err, ErrPollNotFound), errors.As(err, &serviceErr):
			return Question{}, err
		case isUniqueViolation(err) && attempt < defaultOrderTries:
			s.loggerOrDefault().Warn("question order collision, retrying",
				zap.String(fieldPollID, input.PollID),
				zap.Int("attempt", attempt))
			continue
		case isUniqueViolation(err):
			err = errors.Join(errOrderRetryExceeded, err)
		}
		return Question{}, s.storeFailure(opCreateQuestion, "question_insert_failed", err, zap.String(fieldPollID, input.PollID))
	}

	s.loggerOrDefault().Info("question created",
		zap.String(fieldPollID, created.PollID),
		zap.String(fieldQuestionID, created.ID),
		zap.Int("question_order", created.QuestionOrder),
		zap.Int("answer_options", len(created.AnswerOptions)))
	return created, nil
}

func (s *Service) insertQuestion(ctx context.Context, input CreateQuestionInput, chartType ChartType) (Question, error) {
	var question Question
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findPoll(tx, input.PollID); err != nil {
			if errors.Is(err, ErrPollNotFound) {
				return err
			}
			return s.storeFailure(opCreateQuestion, "poll_lookup_failed", err, zap.String(fieldPollID, input.PollID))
		}

		nextOrder, err := nextQuestionOrder(tx, input.PollID)
		if err != nil {
			return err
		}

		questionID, err := s.idProvider.NewID()
		if err != nil {
			return s.storeFailure(opCreateQuestion, "id_generation_failed", err)
		}

		question = Question{
			ID:            questionID,
			PollID:        input.PollID,
			QuestionText:  input.QuestionText,
			QuestionOrder: nextOrder,
			ChartType:     chartType,
			CreatedAt:     s.now(),
		}
		if err := tx.Omit(clause.Associations).Create(&question).Error; err != nil {
			return err
		}

		if len(input.AnswerOptions) == 0 {
			question.AnswerOptions = []AnswerOption{}
			return nil
		}

		options := make([]AnswerOption, 0, len(input.AnswerOptions))
		for position, option := range input.AnswerOptions {
			optionID, err := s.idProvider.NewID()
			if err != nil {
				return s.storeFailure(opCreateQuestion, "id_generation_failed", err)
			}
			options = append(options, AnswerOption{
				ID:          optionID,
				QuestionID:  question.ID,
				OptionText:  option.OptionText,
				OptionOrder: position,
			})
		}
		result := tx.Create(&options)
		if result.Error != nil {
			return s.storeFailure(opCreateQuestion, "answer_options_insert_failed", result.Error,
				zap.String(fieldQuestionID, question.ID))
		}
		if result.RowsAffected != int64(len(options)) {
			return s.storeFailure(opCreateQuestion, "answer_options_insert_failed", errNoRowsWritten,
				zap.String(fieldQuestionID, question.ID))
		}
		question.AnswerOptions = options
		return nil
	})
	if err != nil {
		return Question{}, err
	}
	return question, nil
}

// nextQuestionOrder is one past the highest existing order, so the first question gets 0.
func nextQuestionOrder(tx *gorm.DB, pollID string) (int, error) {
	var maxOrder sql.NullInt64
	if err := tx.Model(&Question{}).
		Where("poll_id = ?", pollID).
		Select("MAX(question_order)").
		Scan(&maxOrder).Error; err != nil {
		return 0, err
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}
