package polls

import "time"

// PollState enumerates the poll lifecycle states.
type PollState string

const (
	PollStateDraft  PollState = "draft"
	PollStateOpen   PollState = "open"
	PollStateClosed PollState = "closed"
)

// ChartType is presentation metadata stored with a question. It is never interpreted here.
type ChartType string

const (
	ChartTypeHorizontalBar ChartType = "horizontal_bar"
	ChartTypeVerticalBar   ChartType = "vertical_bar"
	ChartTypePie           ChartType = "pie"
	ChartTypeDonut         ChartType = "donut"
)

// ParseChartType reports whether raw names a supported chart type.
func ParseChartType(raw string) (ChartType, bool) {
	switch ChartType(raw) {
	case ChartTypeHorizontalBar, ChartTypeVerticalBar, ChartTypePie, ChartTypeDonut:
		return ChartType(raw), true
	default:
		return "", false
	}
}

// Poll is the root of the question tree and the session forest.
type Poll struct {
	ID              string     `gorm:"column:id;primaryKey;size:36;not null"`
	Title           string     `gorm:"column:title;size:255;not null"`
	Slug            *string    `gorm:"column:slug;size:100;uniqueIndex:idx_polls_slug"`
	AccessCode      string     `gorm:"column:access_code;size:16;not null;uniqueIndex:idx_polls_access_code"`
	PasswordHash    *string    `gorm:"column:password_hash;size:255"`
	State           PollState  `gorm:"column:state;size:16;not null;default:draft"`
	ResultsRevealed bool       `gorm:"column:results_revealed;not null;default:false"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null"`
	Questions       []Question `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
	Sessions        []Session  `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Poll) TableName() string {
	return "polls"
}

// Question belongs to exactly one poll; question_order is unique within the poll.
type Question struct {
	ID            string         `gorm:"column:id;primaryKey;size:36;not null"`
	PollID        string         `gorm:"column:poll_id;size:36;not null;uniqueIndex:idx_questions_poll_order,priority:1"`
	QuestionText  string         `gorm:"column:question_text;type:text;not null"`
	QuestionOrder int            `gorm:"column:question_order;not null;uniqueIndex:idx_questions_poll_order,priority:2"`
	ChartType     ChartType      `gorm:"column:chart_type;size:32;not null;default:horizontal_bar"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
	AnswerOptions []AnswerOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Question) TableName() string {
	return "questions"
}

// AnswerOption belongs to exactly one question; option_order mirrors the input position.
type AnswerOption struct {
	ID          string `gorm:"column:id;primaryKey;size:36;not null"`
	QuestionID  string `gorm:"column:question_id;size:36;not null;uniqueIndex:idx_answer_options_question_order,priority:1"`
	OptionText  string `gorm:"column:option_text;type:text;not null"`
	OptionOrder int    `gorm:"column:option_order;not null;uniqueIndex:idx_answer_options_question_order,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (AnswerOption) TableName() string {
	return "answer_options"
}

// Session is a participant identity scoped to one poll. The token is unique across all polls.
type Session struct {
	ID           string     `gorm:"column:id;primaryKey;size:36;not null"`
	PollID       string     `gorm:"column:poll_id;size:36;not null;index:idx_sessions_poll"`
	SessionToken string     `gorm:"column:session_token;size:255;not null;uniqueIndex:idx_sessions_token"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	Responses    []Response `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "sessions"
}

// Response records the single current answer of a session to a question.
type Response struct {
	ID             string        `gorm:"column:id;primaryKey;size:36;not null"`
	SessionID      string        `gorm:"column:session_id;size:36;not null;uniqueIndex:idx_responses_session_question,priority:1"`
	QuestionID     string        `gorm:"column:question_id;size:36;not null;uniqueIndex:idx_responses_session_question,priority:2"`
	AnswerOptionID string        `gorm:"column:answer_option_id;size:36;not null;index:idx_responses_option"`
	CreatedAt      time.Time     `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;not null"`
	Question       *Question     `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	AnswerOption   *AnswerOption `gorm:"foreignKey:AnswerOptionID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Response) TableName() string {
	return "responses"
}

// Models lists every persisted type in dependency order for schema migration.
func Models() []interface{} {
	return []interface{}{&Poll{}, &Question{}, &AnswerOption{}, &Session{}, &Response{}}
}
