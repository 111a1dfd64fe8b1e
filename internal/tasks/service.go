package tasks

import (
	"context"
	"fmt"
)

// View is the dashboard model: the filtered list plus counts over every task
// the owner has.
type View struct {
	Tasks   []Task  `json:"tasks"`
	Filters Filters `json:"filters"`
	Stats   Stats   `json:"stats"`
}

type ProfileView struct {
	Tasks []Task `json:"tasks"`
	Stats Stats  `json:"stats"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) BuildView(ctx context.Context, owner Owner, f Filters) (View, error) {
	f = f.Normalize()
	list, err := s.store.List(ctx, owner, f)
	if err != nil {
		return View{}, err
	}
	all, err := s.store.List(ctx, owner, DefaultFilters())
	if err != nil {
		return View{}, fmt.Errorf("count tasks: %w", err)
	}
	return View{Tasks: list, Filters: f, Stats: ComputeStats(all)}, nil
}

// Profile lists every task newest first.
func (s *Service) Profile(ctx context.Context, owner Owner) (ProfileView, error) {
	list, err := s.store.List(ctx, owner, Filters{Status: All, Priority: All, Sort: SortCreatedAt})
	if err != nil {
		return ProfileView{}, err
	}
	return ProfileView{Tasks: list, Stats: ComputeStats(list)}, nil
}

func (s *Service) Create(ctx context.Context, owner Owner, d Draft) (Task, error) {
	return s.store.Create(ctx, owner, d)
}

func (s *Service) Update(ctx context.Context, owner Owner, id string, p Patch) (Task, error) {
	return s.store.Update(ctx, owner, id, p)
}

func (s *Service) Delete(ctx context.Context, owner Owner, id string) error {
	return s.store.Delete(ctx, owner, id)
}

// Toggle sets the status of one task.
func (s *Service) Toggle(ctx context.Context, owner Owner, id string, status Status) (Task, error) {
	return s.store.Update(ctx, owner, id, Patch{Status: &status})
}

func (s *Service) ClearCompleted(ctx context.Context, owner Owner) (int, error) {
	return s.store.ClearCompleted(ctx, owner)
}
