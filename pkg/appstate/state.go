// Package appstate is the application state the built-in tools act on:
// the current view, tasks and generated workflows.
package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

var (
	ErrUnknownView     = errors.New("unknown view")
	ErrInvalidPriority = errors.New("priority must be low, medium or high")
	ErrEmptyTitle      = errors.New("task title is required")
	ErrEmptyWorkflow   = errors.New("workflow requires a goal and at least one step")
)

// Views the application can navigate to.
var Views = []string{"DASHBOARD", "TASKS", "WORKFLOWS", "MEMORY", "SETTINGS"}

const (
	DefaultPriority = "medium"
	currentViewID   = "current"
)

var priorities = map[string]bool{"low": true, "medium": true, "high": true}

// State persists application state in the record store.
type State struct {
	records store.RecordStore
}

func New(records store.RecordStore) *State {
	return &State{records: records}
}

// Navigate switches the current view. Targets are case-insensitive.
func (s *State) Navigate(ctx context.Context, target string) (string, error) {
	view := strings.ToUpper(strings.TrimSpace(target))
	known := false
	for _, v := range Views {
		if v == view {
			known = true
			break
		}
	}
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownView, target)
	}
	if err := s.records.Put(ctx, &domain.Record{
		Collection: store.CollectionNav,
		ID:         currentViewID,
		Data:       []byte(view),
	}); err != nil {
		return "", fmt.Errorf("saving view: %w", err)
	}
	slog.Info("Navigated", "view", view)
	return view, nil
}

// CurrentView returns the last view navigated to, DASHBOARD by default.
func (s *State) CurrentView(ctx context.Context) (string, error) {
	rec, err := s.records.Get(ctx, store.CollectionNav, currentViewID)
	if errors.Is(err, store.ErrNotFound) {
		return Views[0], nil
	}
	if err != nil {
		return "", err
	}
	return string(rec.Data), nil
}

func (s *State) CreateTask(ctx context.Context, title, priority string) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	priority = strings.ToLower(strings.TrimSpace(priority))
	if priority == "" {
		priority = DefaultPriority
	}
	if !priorities[priority] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	task := &domain.Task{
		ID:        store.NewID(),
		Title:     title,
		Priority:  priority,
		Status:    domain.TaskOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.putTask(ctx, task); err != nil {
		return nil, err
	}
	slog.Info("Created task", "id", task.ID, "priority", priority)
	return task, nil
}

// Tasks lists tasks with the given status, or all tasks when status is empty.
func (s *State) Tasks(ctx context.Context, status string) ([]domain.Task, error) {
	var recs []domain.Record
	var err error
	if status == "" {
		recs, err = s.records.All(ctx, store.CollectionTasks)
	} else {
		recs, err = s.records.AllByIndex(ctx, store.CollectionTasks, status)
	}
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks := make([]domain.Task, 0, len(recs))
	for _, r := range recs {
		var t domain.Task
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, fmt.Errorf("decoding task %s: %w", r.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CompleteTask marks a task done. Completing a done task is a no-op.
func (s *State) CompleteTask(ctx context.Context, id string) (*domain.Task, error) {
	rec, err := s.records.Get(ctx, store.CollectionTasks, id)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	var t domain.Task
	if err := json.Unmarshal(rec.Data, &t); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	if t.Status == domain.TaskDone {
		return &t, nil
	}
	t.Status = domain.TaskDone
	if err := s.putTask(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *State) putTask(ctx context.Context, t *domain.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.records.Put(ctx, &domain.Record{
		Collection: store.CollectionTasks,
		ID:         t.ID,
		Index:      t.Status,
		Data:       data,
		CreatedAt:  t.CreatedAt,
	}); err != nil {
		return fmt.Errorf("saving task %s: %w", t.ID, err)
	}
	return nil
}

// Stats summarizes task progress.
type Stats struct {
	Total      int
	Open       int
	Done       int
	ByPriority map[string]int // open tasks only
}

// Completion is the share of done tasks in percent.
func (st Stats) Completion() float64 {
	if st.Total == 0 {
		return 0
	}
	return float64(st.Done) / float64(st.Total) * 100
}

func (s *State) Stats(ctx context.Context) (Stats, error) {
	tasks, err := s.Tasks(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByPriority: map[string]int{}}
	for _, t := range tasks {
		st.Total++
		if t.Status == domain.TaskDone {
			st.Done++
			continue
		}
		st.Open++
		st.ByPriority[t.Priority]++
	}
	return st, nil
}

func (s *State) CreateWorkflow(ctx context.Context, goal string, steps []string) (*domain.Workflow, error) {
	goal = strings.TrimSpace(goal)
	var clean []string
	for _, st := range steps {
		if st = strings.TrimSpace(st); st != "" {
			clean = append(clean, st)
		}
	}
	if goal == "" || len(clean) == 0 {
		return nil, ErrEmptyWorkflow
	}
	wf := &domain.Workflow{
		ID:        store.NewID(),
		Goal:      goal,
		Steps:     clean,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, err
	}
	if err := s.records.Put(ctx, &domain.Record{
		Collection: store.CollectionWorkflows,
		ID:         wf.ID,
		Data:       data,
		CreatedAt:  wf.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("saving workflow: %w", err)
	}
	return wf, nil
}

func (s *State) Workflows(ctx context.Context) ([]domain.Workflow, error) {
	recs, err := s.records.All(ctx, store.CollectionWorkflows)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	out := make([]domain.Workflow, 0, len(recs))
	for _, r := range recs {
		var wf domain.Workflow
		if err := json.Unmarshal(r.Data, &wf); err != nil {
			return nil, fmt.Errorf("decoding workflow %s: %w", r.ID, err)
		}
		out = append(out, wf)
	}
	return out, nil
}
