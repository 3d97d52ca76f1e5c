package models

import "time"

// Lesson is one row of the delivery ledger: a lesson generated and sent
// to a subscriber on a given local calendar date.
type Lesson struct {
	ID         string
	UserID     string
	LessonDate string
	Subject    string
	HTMLBody   string
	TextBody   string
	Model      string
	TokensIn   int
	TokensOut  int
	CreatedAt  time.Time
}

type Exercise struct {
	Prompt         string `json:"prompt"`
	ExpectedAnswer string `json:"expected_answer"`
}

// LessonContent is the structured output of the content generator.
type LessonContent struct {
	Subject  string   `json:"subject"`
	NewInfo  []string `json:"new_info"`
	Review   []string `json:"review"`
	Exercise Exercise `json:"exercise"`
}

// Generation carries generated content together with model metadata
// recorded on the ledger row.
type Generation struct {
	Content   LessonContent
	Model     string
	TokensIn  int
	TokensOut int
}

type Feedback struct {
	UserID     string
	Difficulty string
	CreatedAt  time.Time
}
