package types

import (
	"strings"
	"time"
)

// Job statuses.
const (
	JobStatusDraft    = "draft"
	JobStatusActive   = "active"
	JobStatusInactive = "inactive"
)

// Job is a job posting.
type Job struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Department        string    `json:"department,omitempty"`
	Location          string    `json:"location,omitempty"`
	EmploymentType    string    `json:"employment_type,omitempty"`
	Status            string    `json:"status,omitempty"`
	IsActive          *bool     `json:"is_active,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ApplicationsCount int       `json:"applications_count,omitempty"`
}

// EffectiveStatus returns the job status, deriving it from is_active when
// the server does not send an explicit status.
func (j Job) EffectiveStatus() string {
	if j.Status != "" {
		return j.Status
	}
	if j.IsActive != nil && !*j.IsActive {
		return JobStatusInactive
	}
	return JobStatusActive
}

// Candidate is a person who can apply to jobs.
type Candidate struct {
	ID              int64     `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	ExperienceYears *int      `json:"experience_years,omitempty"`
	CurrentCompany  string    `json:"current_company,omitempty"`
	CurrentPosition string    `json:"current_position,omitempty"`
	Skills          string    `json:"skills,omitempty"`
	LinkedInURL     string    `json:"linkedin_url,omitempty"`
	PortfolioURL    string    `json:"portfolio_url,omitempty"`
	Location        string    `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FullName returns "First Last", trimmed.
func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Initials returns the first letter of the first and last names.
func (c Candidate) Initials() string {
	var sb strings.Builder
	if c.FirstName != "" {
		sb.WriteString(strings.ToUpper(c.FirstName[:1]))
	}
	if c.LastName != "" {
		sb.WriteString(strings.ToUpper(c.LastName[:1]))
	}
	return sb.String()
}

// Application pairs one candidate with one job and tracks its pipeline stage.
type Application struct {
	ID          int64      `json:"id"`
	JobID       int64      `json:"job_id"`
	CandidateID int64      `json:"candidate_id"`
	Status      Status     `json:"status"`
	Source      string     `json:"source,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	AppliedAt   time.Time  `json:"applied_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	// Nested records are optional on the wire.
	Job       *Job       `json:"job,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// Clone returns a copy that shares no pointers with a.
func (a Application) Clone() Application {
	out := a
	if a.UpdatedAt != nil {
		t := *a.UpdatedAt
		out.UpdatedAt = &t
	}
	if a.Job != nil {
		j := *a.Job
		out.Job = &j
	}
	if a.Candidate != nil {
		c := *a.Candidate
		out.Candidate = &c
	}
	return out
}

// User is the authenticated account returned by /auth/me.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// StatusHistoryEntry records one status change of an application.
type StatusHistoryEntry struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	FromStatus    Status    `json:"from_status,omitempty"`
	ToStatus      Status    `json:"to_status"`
	Reason        string    `json:"reason,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ChangedBy     int64     `json:"changed_by"`
	ChangedAt     time.Time `json:"changed_at"`
}
