package polls

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSubmitResponseLastWriteWins(t *testing.T) {
	service := mustService(t)
	ctx := context.Background()
	poll := mustOpenPoll(t, service, "Votes")
	question := mustQuestion(t, service, poll.ID, "Red", "Blue")
	session := mustSession(t, service, poll.ID, "voter")

	first, err := service.SubmitResponse(ctx, SubmitResponseInput{
		SessionToken:   "voter",
		QuestionID:     question.ID,
		AnswerOptionID: question.AnswerOptions[0].ID,
	})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if first.SessionID != session.SessionID {
		t.Fatalf("expected session %s, got %s", session.SessionID, first.SessionID)
	}

	second, err := service.SubmitResponse(ctx, SubmitResponseInput{
		SessionToken:   "voter",
		QuestionID:     question.ID,
		AnswerOptionID: question.AnswerOptions[1].ID,
	})
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if second.ID != first.ID || second.AnswerOptionID != question.AnswerOptions[1].ID {
		t.Fatalf("expected the response to be replaced in place, got %+v", second)
	}

	if count := countRows(t, service, &Response{}, "session_id = ? AND question_id = ?", session.SessionID, question.ID); count != 1 {
		t.Fatalf("expected one response row, got %d", count)
	}
}

func TestSubmitResponseRejectsForeignReferences(t *testing.T) {
	service := mustService(t)
	ctx := context.Background()
	poll := mustOpenPoll(t, service, "Main")
	otherPoll := mustOpenPoll(t, service, "Other")
	question := mustQuestion(t, service, poll.ID, "Yes", "No")
	sibling := mustQuestion(t, service, poll.ID, "Left", "Right")
	foreign := mustQuestion(t, service, otherPoll.ID, "Up", "Down")
	mustSession(t, service, poll.ID, "voter")

	testCases := []struct {
		name     string
		input    SubmitResponseInput
		expected error
	}{
		{
			name:     "unknown session",
			input:    SubmitResponseInput{SessionToken: "nobody", QuestionID: question.ID, AnswerOptionID: question.AnswerOptions[0].ID},
			expected: ErrSessionNotFound,
		},
		{
			name:     "question on another poll",
			input:    SubmitResponseInput{SessionToken: "voter", QuestionID: foreign.ID, AnswerOptionID: foreign.AnswerOptions[0].ID},
			expected: ErrQuestionNotFound,
		},
		{
			name:     "option on another question",
			input:    SubmitResponseInput{SessionToken: "voter", QuestionID: question.ID, AnswerOptionID: sibling.AnswerOptions[0].ID},
			expected: ErrOptionNotFound,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := service.SubmitResponse(ctx, testCase.input); !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}

	_, err := service.SubmitResponse(ctx, SubmitResponseInput{})
	expectValidationMessages(t, err,
		"Session token is required",
		"Question ID is required",
		"Answer option ID is required",
	)

	if count := countRows(t, service, &Response{}, "1 = 1"); count != 0 {
		t.Fatalf("expected no responses stored, got %d", count)
	}
}

func TestSubmitResponseAfterClose(t *testing.T) {
	service := mustService(t)
	ctx := context.Background()
	poll := mustOpenPoll(t, service, "Closing")
	question := mustQuestion(t, service, poll.ID, "A", "B")
	mustSession(t, service, poll.ID, "late")

	if _, err := service.TransitionPoll(ctx, poll.ID, PollStateClosed); err != nil {
		t.Fatalf("close poll failed: %v", err)
	}

	_, err := service.SubmitResponse(ctx, SubmitResponseInput{
		SessionToken: "late", QuestionID: question.ID, AnswerOptionID: question.AnswerOptions[0].ID,
	})
	if !errors.Is(err, ErrPollNotOpen) {
		t.Fatalf("expected ErrPollNotOpen, got %v", err)
	}
	if count := countRows(t, service, &Response{}, "1 = 1"); count != 0 {
		t.Fatalf("expected no responses stored, got %d", count)
	}
}

func TestSubmitResponseConcurrentWritesKeepOneRow(t *testing.T) {
	service := mustService(t)
	poll := mustOpenPoll(t, service, "Burst")
	question := mustQuestion(t, service, poll.ID, "A", "B", "C")
	session := mustSession(t, service, poll.ID, "burst")

	const workers = 24
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			option := question.AnswerOptions[index%len(question.AnswerOptions)]
			_, err := service.SubmitResponse(context.Background(), SubmitResponseInput{
				SessionToken:   "burst",
				QuestionID:     question.ID,
				AnswerOptionID: option.ID,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent submit failed: %v", err)
		}
	}

	var stored []Response
	if err := service.db.Where("session_id = ?", session.SessionID).Find(&stored).Error; err != nil {
		t.Fatalf("failed to load responses: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one response row, got %d", len(stored))
	}

	valid := map[string]bool{}
	for _, option := range question.AnswerOptions {
		valid[option.ID] = true
	}
	if !valid[stored[0].AnswerOptionID] {
		t.Fatalf("stored option %s is not one of the question's options", stored[0].AnswerOptionID)
	}
}
