package polls

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePoll validates input, reserves a unique access code and persists a draft poll.
// The caller must already have verified the admin credential.
func (s *Service) CreatePoll(ctx context.Context, input CreatePollInput) (Poll, error) {
	if err := input.validate(); err != nil {
		return Poll{}, err
	}

	db := s.withContext(ctx)

	var slug *string
	if input.Slug != "" {
		taken, err := s.slugTaken(db, input.Slug)
		if err != nil {
			return Poll{}, s.storeFailure(opCreatePoll, "slug_lookup_failed", err)
		}
		if taken {
			return Poll{}, ErrSlugConflict
		}
		value := input.Slug
		slug = &value
	}

	var passwordHash *string
	if input.Password != "" {
		hashed, err := s.secrets.HashSecret(input.Password)
		if err != nil {
			return Poll{}, s.storeFailure(opCreatePoll, "password_hash_failed", err)
		}
		passwordHash = &hashed
	}

	pollID, err := s.idProvider.NewID()
	if err != nil {
		return Poll{}, s.storeFailure(opCreatePoll, "id_generation_failed", err)
	}

	codeTaken := func(_ context.Context, code string) (bool, error) {
		return s.accessCodeTaken(db, code)
	}

	for attempt := 1; ; attempt++ {
		accessCode, err := s.accessCodes.GenerateUnique(ctx, codeTaken)
		if err != nil {
			return Poll{}, s.storeFailure(opCreatePoll, "access_code_generation_failed", err)
		}

		now := s.now()
		poll := Poll{
			ID:              pollID,
			Title:           input.Title,
			Slug:            slug,
			AccessCode:      accessCode,
			PasswordHash:    passwordHash,
			State:           PollStateDraft,
			ResultsRevealed: false,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		insertErr := db.Create(&poll).Error
		if insertErr == nil {
			s.loggerOrDefault().Info("poll created",
				zap.String(fieldPollID, poll.ID),
				zap.String("access_code", poll.AccessCode))
			return poll, nil
		}
		if !isUniqueViolation(insertErr) {
			return Poll{}, s.storeFailure(opCreatePoll, "poll_insert_failed", insertErr)
		}

		// A concurrent creator won a race past the advisory checks. The slug is user-chosen and
		// reported; the access code is ours and simply redrawn.
		if slug != nil {
			taken, lookupErr := s.slugTaken(db, *slug)
			if lookupErr != nil {
				return Poll{}, s.storeFailure(opCreatePoll, "slug_lookup_failed", lookupErr)
			}
			if taken {
				return Poll{}, ErrSlugConflict
			}
		}
		if attempt >= defaultCodeTries {
			return Poll{}, s.storeFailure(opCreatePoll, "access_code_conflict", insertErr)
		}
		s.loggerOrDefault().Warn("access code collision on insert, regenerating",
			zap.String(fieldPollID, pollID),
			zap.Int("attempt", attempt))
	}
}

// TransitionPoll moves a poll along draft -> open -> closed. Requesting the current state is a no-op.
func (s *Service) TransitionPoll(ctx context.Context, pollID string, target PollState) (Poll, error) {
	var messages []string
	if isBlank(pollID) {
		messages = append(messages, "Poll ID is required")
	}
	switch target {
	case PollStateDraft, PollStateOpen, PollStateClosed:
	default:
		messages = append(messages, "Invalid poll state")
	}
	if err := validationResult(messages); err != nil {
		return Poll{}, err
	}

	db := s.withContext(ctx)
	poll, err := s.findPoll(db, pollID)
	if errors.Is(err, ErrPollNotFound) {
		return Poll{}, err
	}
	if err != nil {
		return Poll{}, s.storeFailure(opTransitionPoll, "poll_lookup_failed", err, zap.String(fieldPollID, pollID))
	}

	if poll.State == target {
		return poll, nil
	}
	if !canTransition(poll.State, target) {
		return Poll{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, poll.State, target)
	}

	now := s.now()
	result := db.Model(&Poll{}).
		Where("id = ? AND state = ?", poll.ID, poll.State).
		Updates(map[string]interface{}{"state": target, "updated_at": now})
	if result.Error != nil {
		return Poll{}, s.storeFailure(opTransitionPoll, "poll_update_failed", result.Error, zap.String(fieldPollID, pollID))
	}
	if result.RowsAffected == 0 {
		return Poll{}, fmt.Errorf("%w: poll state changed concurrently", ErrInvalidTransition)
	}

	s.loggerOrDefault().Info("poll state changed",
		zap.String(fieldPollID, poll.ID),
		zap.String("from", string(poll.State)),
		zap.String("to", string(target)))

	poll.State = target
	poll.UpdatedAt = now
	return poll, nil
}

func canTransition(from, to PollState) bool {
	switch from {
	case PollStateDraft:
		return to == PollStateOpen
	case PollStateOpen:
		return to == PollStateClosed
	default:
		return false
	}
}

func (s *Service) slugTaken(db *gorm.DB, slug string) (bool, error) {
	var count int64
	if err := db.Model(&Poll{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) accessCodeTaken(db *gorm.DB, code string) (bool, error) {
	var count int64
	if err := db.Model(&Poll{}).Where("access_code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
