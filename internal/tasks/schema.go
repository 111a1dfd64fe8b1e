package tasks

import (
	"net/url"
	"strings"

	"queueapp/queue-web/internal/validation"
)

type draftForm struct {
	Title       string `form:"title" validate:"min=1,max=100"`
	Description string `form:"description" validate:"max=500"`
	Priority    string `form:"priority" validate:"oneof=Low Medium High"`
	DueDate     string `form:"dueDate" validate:"required,datetime=2006-01-02"`
	Status      string `form:"status" validate:"oneof=Pending 'In Progress' Completed"`
}

type patchForm struct {
	ID          string  `form:"id" validate:"required"`
	Title       *string `form:"title" validate:"omitnil,min=1,max=100"`
	Description *string `form:"description" validate:"omitnil,max=500"`
	Priority    *string `form:"priority" validate:"omitnil,oneof=Low Medium High"`
	DueDate     *string `form:"dueDate" validate:"omitnil,min=1,datetime=2006-01-02"`
	Status      *string `form:"status" validate:"omitnil,oneof=Pending 'In Progress' Completed"`
}

type idForm struct {
	ID string `form:"id" validate:"required"`
}

type toggleForm struct {
	ID     string `form:"id" validate:"required"`
	Status string `form:"status" validate:"oneof=Pending 'In Progress' Completed"`
}

var taskMessages = validation.Messages{
	"title.min":        "Title is required",
	"title.max":        "Max 100 characters",
	"description.max":  "Max 500 characters",
	"priority.oneof":   "Select a priority",
	"dueDate.required": "Due date required",
	"dueDate.min":      "Due date required",
	"dueDate.datetime": "Invalid date",
	"status.oneof":     "Invalid status",
	"id.required":      "Required",
}

// Update names one task plus the fields to change.
type Update struct {
	ID    string
	Patch Patch
}

type Toggle struct {
	ID     string
	Status Status
}

func ParseDraft(v validation.Values) validation.Result[Draft] {
	status := v["status"]
	if status == "" {
		status = string(StatusPending)
	}
	res := validation.Check(draftForm{
		Title:       v["title"],
		Description: v["description"],
		Priority:    v["priority"],
		DueDate:     v["dueDate"],
		Status:      status,
	}, taskMessages)
	form, ok := res.Get()
	if !ok {
		f, _ := res.Failure()
		return validation.Failed[Draft](f)
	}
	due, _ := DueDateFromDay(form.DueDate)
	return validation.Ok(Draft{
		Title:       form.Title,
		Description: form.Description,
		Priority:    Priority(form.Priority),
		DueDate:     due,
		Status:      Status(form.Status),
	})
}

func ParseUpdate(v validation.Values) validation.Result[Update] {
	res := validation.Check(patchForm{
		ID:          v["id"],
		Title:       v.Ptr("title"),
		Description: v.Ptr("description"),
		Priority:    v.Ptr("priority"),
		DueDate:     v.Ptr("dueDate"),
		Status:      v.Ptr("status"),
	}, taskMessages)
	form, ok := res.Get()
	if !ok {
		f, _ := res.Failure()
		return validation.Failed[Update](f)
	}

	var p Patch
	p.Title = form.Title
	p.Description = form.Description
	if form.Priority != nil {
		pr := Priority(*form.Priority)
		p.Priority = &pr
	}
	if form.DueDate != nil {
		due, _ := DueDateFromDay(*form.DueDate)
		p.DueDate = &due
	}
	if form.Status != nil {
		st := Status(*form.Status)
		p.Status = &st
	}
	return validation.Ok(Update{ID: form.ID, Patch: p})
}

func ParseID(v validation.Values) validation.Result[string] {
	res := validation.Check(idForm{ID: v["id"]}, taskMessages)
	form, ok := res.Get()
	if !ok {
		f, _ := res.Failure()
		return validation.Failed[string](f)
	}
	return validation.Ok(form.ID)
}

func ParseToggle(v validation.Values) validation.Result[Toggle] {
	res := validation.Check(toggleForm{ID: v["id"], Status: v["status"]}, taskMessages)
	form, ok := res.Get()
	if !ok {
		f, _ := res.Failure()
		return validation.Failed[Toggle](f)
	}
	return validation.Ok(Toggle{ID: form.ID, Status: Status(form.Status)})
}

// ParseFilters reads dashboard query parameters. Unknown values fall back to
// their defaults instead of failing the page.
func ParseFilters(q url.Values) Filters {
	get := func(key, def string) string {
		if s := strings.TrimSpace(q.Get(key)); s != "" {
			return s
		}
		return def
	}
	return Filters{
		Status:   get("status", All),
		Priority: get("priority", All),
		Sort:     Sort(get("sort", string(SortDueDate))),
		Query:    strings.TrimSpace(q.Get("q")),
	}.Normalize()
}
