// Package model contains domain models passed between layers.
package model

import "time"

// Project is a job posted by a client.
// Freelancer stays empty while the project is Open.
type Project struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Client          string        `json:"client"`
	Freelancer      string        `json:"freelancer,omitempty"`
	Budget          string        `json:"budget"` // decimal native currency
	Deadline        time.Time     `json:"deadline"`
	CreatedAt       time.Time     `json:"created_at"`
	Status          ProjectStatus `json:"status"`
	Skills          []string      `json:"skills"`
	ExperienceLevel uint8         `json:"experience_level"`
	Duration        uint8         `json:"duration"`
	Type            uint8         `json:"type"`
	Attachments     []string      `json:"attachments"`
}

// ProjectDraft carries the caller-supplied fields of a project to create.
type ProjectDraft struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Budget          string    `json:"budget"`
	Deadline        time.Time `json:"deadline"`
	Skills          []string  `json:"skills"`
	ExperienceLevel uint8     `json:"experience_level"`
	Duration        uint8     `json:"duration"`
	Type            uint8     `json:"type"`
	Attachments     []string  `json:"attachments"`
}

// Milestone is a payment stage scoped to a project.
type Milestone struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	Deadline    time.Time       `json:"deadline"`
	Status      MilestoneStatus `json:"status"`
}

// Proposal is a freelancer's bid on a project.
type Proposal struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	Freelancer    string         `json:"freelancer"`
	Description   string         `json:"description"`
	Price         string         `json:"price"`
	EstimatedTime uint64         `json:"estimated_time"`
	Status        ProposalStatus `json:"status"`
	SubmittedAt   time.Time      `json:"submitted_at"`
}

// Review is an append-only rating of one participant by another.
// Rating is scaled by ten: 47 means 4.7.
type Review struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Reviewer  string    `json:"reviewer"`
	Reviewee  string    `json:"reviewee"`
	Rating    uint64    `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}
