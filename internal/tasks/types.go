package tasks

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid task input")
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities High first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

type Sort string

const (
	SortDueDate   Sort = "dueDate"
	SortPriority  Sort = "priority"
	SortCreatedAt Sort = "createdAt"
)

func (s Sort) Valid() bool {
	return s == SortDueDate || s == SortPriority || s == SortCreatedAt
}

// All disables the status or priority filter.
const All = "all"

type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	DueDate     time.Time `json:"dueDate"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Owner is the authenticated caller. AccessToken is forwarded to backends
// that enforce row policies themselves.
type Owner struct {
	ID          string
	AccessToken string
}

type Draft struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     time.Time
	Status      Status
}

// Patch carries the fields to change; nil fields are left as stored.
type Patch struct {
	Title       *string
	Description *string
	Priority    *Priority
	DueDate     *time.Time
	Status      *Status
}

type Filters struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Sort     Sort   `json:"sort"`
	Query    string `json:"query"`
}

// DefaultFilters shows every task, soonest due first.
func DefaultFilters() Filters {
	return Filters{Status: All, Priority: All, Sort: SortDueDate}
}

// Normalize replaces unknown values with their defaults.
func (f Filters) Normalize() Filters {
	out := DefaultFilters()
	if Status(f.Status).Valid() {
		out.Status = f.Status
	}
	if Priority(f.Priority).Valid() {
		out.Priority = f.Priority
	}
	if f.Sort.Valid() {
		out.Sort = f.Sort
	}
	out.Query = f.Query
	return out
}

func (f Filters) status() (Status, bool) {
	s := Status(f.Status)
	return s, s.Valid()
}

func (f Filters) priority() (Priority, bool) {
	p := Priority(f.Priority)
	return p, p.Valid()
}

type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

func ComputeStats(list []Task) Stats {
	st := Stats{Total: len(list)}
	for _, t := range list {
		switch t.Status {
		case StatusPending:
			st.Pending++
		case StatusInProgress:
			st.InProgress++
		case StatusCompleted:
			st.Completed++
		}
	}
	return st
}

// DueDateFromDay stores a calendar day as its last second in UTC.
func DueDateFromDay(day string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return time.Time{}, ErrInvalidInput
	}
	return d.Add(23*time.Hour + 59*time.Minute + 59*time.Second), nil
}

func sortTasks(list []Task, by Sort) {
	switch by {
	case SortPriority:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority.Rank() < list[j].Priority.Rank() })
	case SortCreatedAt:
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	default:
		sort.SliceStable(list, func(i, j int) bool { return list[i].DueDate.Before(list[j].DueDate) })
	}
}
