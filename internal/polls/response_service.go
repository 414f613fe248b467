package polls

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmitResponse records the session's answer to a question, replacing any earlier answer.
func (s *Service) SubmitResponse(ctx context.Context, input SubmitResponseInput) (Response, error) {
	if err := input.validate(); err != nil {
		return Response{}, err
	}

	db := s.withContext(ctx)

	session, err := s.findSessionByToken(db, input.SessionToken)
	if errors.Is(err, ErrSessionNotFound) {
		return Response{}, err
	}
	if err != nil {
		return Response{}, s.storeFailure(opSubmitResponse, "session_lookup_failed", err)
	}

	// A missing poll here means the session outlived it; treat it like a closed poll.
	poll, err := s.findPoll(db, session.PollID)
	if errors.Is(err, ErrPollNotFound) {
		return Response{}, ErrPollNotOpen
	}
	if err != nil {
		return Response{}, s.storeFailure(opSubmitResponse, "poll_lookup_failed", err,
			zap.String(fieldSessionID, session.ID))
	}
	if err := requireOpen(poll); err != nil {
		return Response{}, err
	}

	if err := s.requireQuestionInPoll(db, input.QuestionID, poll.ID); err != nil {
		return Response{}, err
	}
	if err := s.requireOptionInQuestion(db, input.AnswerOptionID, input.QuestionID); err != nil {
		return Response{}, err
	}

	responseID, err := s.idProvider.NewID()
	if err != nil {
		return Response{}, s.storeFailure(opSubmitResponse, "id_generation_failed", err)
	}

	now := s.now()
	response := Response{
		ID:             responseID,
		SessionID:      session.ID,
		QuestionID:     input.QuestionID,
		AnswerOptionID: input.AnswerOptionID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	upsert := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer_option_id", "updated_at"}),
		}).
		Create(&response)
	if upsert.Error != nil {
		return Response{}, s.storeFailure(opSubmitResponse, "response_upsert_failed", upsert.Error,
			zap.String(fieldSessionID, session.ID),
			zap.String(fieldQuestionID, input.QuestionID))
	}

	var stored Response
	err = db.Where("session_id = ? AND question_id = ?", session.ID, input.QuestionID).Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = errNoRowsWritten
	}
	if err != nil {
		return Response{}, s.storeFailure(opSubmitResponse, "response_reload_failed", err,
			zap.String(fieldSessionID, session.ID),
			zap.String(fieldQuestionID, input.QuestionID))
	}

	s.loggerOrDefault().Debug("response recorded",
		zap.String(fieldSessionID, session.ID),
		zap.String(fieldQuestionID, stored.QuestionID),
		zap.String(fieldOptionID, stored.AnswerOptionID))
	return stored, nil
}

func (s *Service) requireQuestionInPoll(db *gorm.DB, questionID, pollID string) error {
	var count int64
	err := db.Model(&Question{}).
		Where("id = ? AND poll_id = ?", questionID, pollID).
		Count(&count).Error
	if err != nil {
		return s.storeFailure(opSubmitResponse, "question_lookup_failed", err, zap.String(fieldQuestionID, questionID))
	}
	if count == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (s *Service) requireOptionInQuestion(db *gorm.DB, optionID, questionID string) error {
	var count int64
	err := db.Model(&AnswerOption{}).
		Where("id = ? AND question_id = ?", optionID, questionID).
		Count(&count).Error
	if err != nil {
		return s.storeFailure(opSubmitResponse, "option_lookup_failed", err, zap.String(fieldOptionID, optionID))
	}
	if count == 0 {
		return ErrOptionNotFound
	}
	return nil
}
