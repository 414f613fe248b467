package polls

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionOutcome reports the session a token resolved to. Created is false when the token
// already named a session.
type SessionOutcome struct {
	SessionID string
	PollID    string
	Created   bool
}

// CreateSession creates or reuses the participant session named by the token.
// The token alone identifies an existing session; a token already bound to a different poll
// resolves to that session unchanged.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (SessionOutcome, error) {
	if err := input.validate(); err != nil {
		return SessionOutcome{}, err
	}

	db := s.withContext(ctx)
	poll, err := s.findPoll(db, input.PollID)
	if errors.Is(err, ErrPollNotFound) {
		return SessionOutcome{}, err
	}
	if err != nil {
		return SessionOutcome{}, s.storeFailure(opCreateSession, "poll_lookup_failed", err, zap.String(fieldPollID, input.PollID))
	}
	if err := requireOpen(poll); err != nil {
		return SessionOutcome{}, err
	}

	sessionID, err := s.idProvider.NewID()
	if err != nil {
		return SessionOutcome{}, s.storeFailure(opCreateSession, "id_generation_failed", err)
	}

	session := Session{
		ID:           sessionID,
		PollID:       poll.ID,
		SessionToken: input.SessionToken,
		CreatedAt:    s.now(),
	}
	createResult := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_token"}},
			DoNothing: true,
		}).
		Create(&session)
	if createResult.Error != nil {
		return SessionOutcome{}, s.storeFailure(opCreateSession, "session_insert_failed", createResult.Error,
			zap.String(fieldPollID, poll.ID))
	}

	if createResult.RowsAffected > 0 {
		s.loggerOrDefault().Info("session created",
			zap.String(fieldPollID, poll.ID),
			zap.String(fieldSessionID, session.ID))
		return SessionOutcome{SessionID: session.ID, PollID: session.PollID, Created: true}, nil
	}

	existing, err := s.findSessionByToken(db, input.SessionToken)
	if err != nil {
		return SessionOutcome{}, s.storeFailure(opCreateSession, "session_lookup_failed", err,
			zap.String(fieldPollID, poll.ID))
	}
	if existing.PollID != poll.ID {
		s.loggerOrDefault().Warn("session token reused across polls",
			zap.String(fieldSessionID, existing.ID),
			zap.String("session_poll_id", existing.PollID),
			zap.String("requested_poll_id", poll.ID))
	}
	return SessionOutcome{SessionID: existing.ID, PollID: existing.PollID, Created: false}, nil
}

func (s *Service) findSessionByToken(db *gorm.DB, token string) (Session, error) {
	var session Session
	err := db.Where("session_token = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	return session, err
}
