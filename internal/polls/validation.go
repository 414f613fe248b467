package polls

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLength    = 255
	maxSlugLength     = 100
	minPasswordLength = 4
	minAnswerOptions  = 2
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// CreatePollInput carries admin input for a new poll. Empty Slug and Password mean absent.
type CreatePollInput struct {
	Title    string
	Slug     string
	Password string
}

// AnswerOptionInput is one option of a new question, in display order.
type AnswerOptionInput struct {
	OptionText string
}

// CreateQuestionInput carries admin input for a new question. Empty ChartType selects horizontal_bar.
type CreateQuestionInput struct {
	PollID        string
	QuestionText  string
	ChartType     string
	AnswerOptions []AnswerOptionInput
}

// CreateSessionInput identifies a participant joining a poll.
type CreateSessionInput struct {
	PollID       string
	SessionToken string
}

// SubmitResponseInput is a participant's answer to one question.
type SubmitResponseInput struct {
	SessionToken   string
	QuestionID     string
	AnswerOptionID string
}

func validationResult(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// isBlank treats whitespace-only text as missing. Accepted values are stored untrimmed.
func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func (input CreatePollInput) validate() error {
	var messages []string

	if isBlank(input.Title) {
		messages = append(messages, "Title is required")
	} else if utf8.RuneCountInString(input.Title) > maxTitleLength {
		messages = append(messages, fmt.Sprintf("Title must be %d characters or less", maxTitleLength))
	}

	if input.Slug != "" {
		if !slugPattern.MatchString(input.Slug) {
			messages = append(messages, "Slug can only contain lowercase letters, numbers, and hyphens")
		} else if len(input.Slug) > maxSlugLength {
			messages = append(messages, fmt.Sprintf("Slug must be %d characters or less", maxSlugLength))
		}
	}

	if input.Password != "" && utf8.RuneCountInString(input.Password) < minPasswordLength {
		messages = append(messages, fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	return validationResult(messages)
}

func (input CreateQuestionInput) validate() error {
	var messages []string

	if isBlank(input.PollID) {
		messages = append(messages, "Poll ID is required")
	}
	if isBlank(input.QuestionText) {
		messages = append(messages, "Question text is required")
	}
	if input.ChartType != "" {
		if _, ok := ParseChartType(input.ChartType); !ok {
			messages = append(messages, "Invalid chart type")
		}
	}
	if len(input.AnswerOptions) > 0 {
		if len(input.AnswerOptions) < minAnswerOptions {
			messages = append(messages, fmt.Sprintf("At least %d answer options are required", minAnswerOptions))
		} else {
			for i, option := range input.AnswerOptions {
				if isBlank(option.OptionText) {
					messages = append(messages, fmt.Sprintf("Answer option %d must have option_text", i+1))
				}
			}
		}
	}

	return validationResult(messages)
}

func (input CreateSessionInput) validate() error {
	var messages []string
	if isBlank(input.PollID) {
		messages = append(messages, "Poll ID is required")
	}
	if isBlank(input.SessionToken) {
		messages = append(messages, "Session token is required")
	}
	return validationResult(messages)
}

func (input SubmitResponseInput) validate() error {
	var messages []string
	if isBlank(input.SessionToken) {
		messages = append(messages, "Session token is required")
	}
	if isBlank(input.QuestionID) {
		messages = append(messages, "Question ID is required")
	}
	if isBlank(input.AnswerOptionID) {
		messages = append(messages, "Answer option ID is required")
	}
	return validationResult(messages)
}
