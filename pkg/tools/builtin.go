package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nstogner/cortex/pkg/appstate"
	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/memory"
)

// Built-in tool names.
const (
	SystemNavigate   = "system_navigate"
	TaskCreate       = "task_create"
	TaskList         = "task_list"
	TaskComplete     = "task_complete"
	WorkflowGenerate = "workflow_generate"
	TaskStats        = "task_stats"
	TaskChart        = "task_chart"
	MemoryRecall     = "memory_recall"
	MemoryStore      = "memory_store"
)

// recallLimit bounds memory_recall results.
const recallLimit = 5

// Deps are the side-effect boundaries the built-in tools may touch.
type Deps struct {
	State  *appstate.State
	Memory *memory.Memory
}

// RegisterBuiltins registers the built-in tools. Memory tools are only
// registered when a memory vault is given.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	b := &builtins{deps: deps}
	tools := []Tool{
		{Schema: navigateSchema(), Handler: b.navigate},
		{Schema: taskCreateSchema, Handler: b.taskCreate},
		{Schema: taskListSchema, Handler: b.taskList},
		{Schema: taskCompleteSchema, Handler: b.taskComplete},
		{Schema: workflowSchema, Handler: b.workflowGenerate},
		{Schema: taskStatsSchema, Handler: b.taskStats},
		{Schema: taskChartSchema, Handler: b.taskChart},
	}
	if deps.Memory != nil {
		tools = append(tools,
			Tool{Schema: memoryRecallSchema, Handler: b.memoryRecall},
			Tool{Schema: memoryStoreSchema, Handler: b.memoryStore},
		)
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func navigateSchema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        SystemNavigate,
		Description: "Switch the application to another view.",
		Parameters: &domain.Schema{
			Type: domain.TypeObject,
			Properties: map[string]*domain.Schema{
				"target": {Type: domain.TypeString, Description: "The view to open.", Enum: appstate.Views},
			},
			Required: []string{"target"},
		},
	}
}

var taskCreateSchema = domain.ToolSchema{
	Name:        TaskCreate,
	Description: "Create a task.",
	Parameters: &domain.Schema{
		Type: domain.TypeObject,
		Properties: map[string]*domain.Schema{
			"title":    {Type: domain.TypeString, Description: "Short task title."},
			"priority": {Type: domain.TypeString, Enum: []string{"low", "medium", "high"}},
		},
		Required: []string{"title"},
	},
}

var taskListSchema = domain.ToolSchema{
	Name:        TaskList,
	Description: "List tasks, optionally filtered by status.",
	Parameters: &domain.Schema{
		Type: domain.TypeObject,
		Properties: map[string]*domain.Schema{
			"status": {Type: domain.TypeString, Enum: []string{domain.TaskOpen, domain.TaskDone}},
		},
	},
}

var taskCompleteSchema = domain.ToolSchema{
	Name:        TaskComplete,
	Description: "Mark a task as done.",
	Parameters: &domain.Schema{
		Type: domain.TypeObject,
		Properties: map[string]*domain.Schema{
			"id": {Type: domain.TypeString, Description: "Task ID."},
		},
		Required: []string{"id"},
	},
}

var workflowSchema = domain.ToolSchema{
	Name:        WorkflowGenerate,
	Description: "Record an ordered plan of steps for a goal.",
	Parameters: &domain.Schema{
		Type: domain.TypeObject,
		Properties: map[string]*domain.Schema{
			"goal":  {Type: domain.TypeString},
			"steps": {Type: domain.TypeArray, Items: &domain.Schema{Type: domain.TypeString}},
		},
		Required: []string{"goal", "steps"},
	},
}

var taskStatsSchema = domain.ToolSchema{
	Name:        TaskStats,
	Description: "Report the share of completed tasks.",
	Parameters:  &domain.Schema{Type: domain.TypeObject},
}

var taskChartSchema = domain.ToolSchema{
	Name:        TaskChart,
	Description: "Chart open tasks by priority.",
	Parameters:  &domain.Schema{Type: domain.TypeObject},
}

var memoryRecallSchema = domain.ToolSchema{
	Name:        MemoryRecall,
	Description: "Search the long-term memory vault.",
	Parameters: &domain.Schema{
		Type: domain.TypeObject,
		Properties: map[string]*domain.Schema{
			"query": {Type: domain.TypeString},
		},
		Required: []string{"query"},
	},
}

var memoryStoreSchema = domain.ToolSchema{
	Name:        MemoryStore,
	Description: "Store a fragment in the long-term memory vault.",
	Parameters: &domain.Schema{
		Type: domain.TypeObject,
		Properties: map[string]*domain.Schema{
			"key":  {Type: domain.TypeString, Description: "Short unique key."},
			"text": {Type: domain.TypeString},
			"tags": {Type: domain.TypeArray, Items: &domain.Schema{Type: domain.TypeString}},
		},
		Required: []string{"key", "text"},
	},
}

type builtins struct {
	deps Deps
}

func (b *builtins) navigate(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	target, err := stringArg(args, "target")
	if err != nil {
		return domain.ToolResult{}, err
	}
	view, err := b.deps.State.Navigate(ctx, target)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return domain.Success(SystemNavigate, domain.NavPayload{Target: view}), nil
}

func (b *builtins) taskCreate(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	title, err := stringArg(args, "title")
	if err != nil {
		return domain.ToolResult{}, err
	}
	priority, err := optionalStringArg(args, "priority")
	if err != nil {
		return domain.ToolResult{}, err
	}
	task, err := b.deps.State.CreateTask(ctx, title, priority)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return domain.Success(TaskCreate, domain.MessagePayload{
		Text: fmt.Sprintf("Created %s priority task %q (%s).", task.Priority, task.Title, task.ID),
	}), nil
}

func (b *builtins) taskList(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	status, err := optionalStringArg(args, "status")
	if err != nil {
		return domain.ToolResult{}, err
	}
	tasks, err := b.deps.State.Tasks(ctx, status)
	if err != nil {
		return domain.ToolResult{}, err
	}
	table := domain.TablePayload{Columns: []string{"ID", "Title", "Priority", "Status"}, Rows: [][]string{}}
	for _, t := range tasks {
		table.Rows = append(table.Rows, []string{t.ID, t.Title, t.Priority, t.Status})
	}
	return domain.Success(TaskList, table), nil
}

func (b *builtins) taskComplete(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	id, err := stringArg(args, "id")
	if err != nil {
		return domain.ToolResult{}, err
	}
	task, err := b.deps.State.CompleteTask(ctx, id)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return domain.Success(TaskComplete, domain.MessagePayload{
		Text: fmt.Sprintf("Completed task %q.", task.Title),
	}), nil
}

func (b *builtins) workflowGenerate(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	goal, err := stringArg(args, "goal")
	if err != nil {
		return domain.ToolResult{}, err
	}
	steps, err := stringsArg(args, "steps")
	if err != nil {
		return domain.ToolResult{}, err
	}
	wf, err := b.deps.State.CreateWorkflow(ctx, goal, steps)
	if err != nil {
		return domain.ToolResult{}, err
	}
	table := domain.TablePayload{Columns: []string{"Step", "Action"}}
	for i, s := range wf.Steps {
		table.Rows = append(table.Rows, []string{strconv.Itoa(i + 1), s})
	}
	return domain.Success(WorkflowGenerate, table), nil
}

func (b *builtins) taskStats(ctx context.Context, _ map[string]any) (domain.ToolResult, error) {
	st, err := b.deps.State.Stats(ctx)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return domain.Success(TaskStats, domain.StatPayload{
		Label: fmt.Sprintf("Tasks completed (%d of %d)", st.Done, st.Total),
		Value: st.Completion(),
		Unit:  "%",
	}), nil
}

func (b *builtins) taskChart(ctx context.Context, _ map[string]any) (domain.ToolResult, error) {
	st, err := b.deps.State.Stats(ctx)
	if err != nil {
		return domain.ToolResult{}, err
	}
	chart := domain.ChartPayload{Title: "Open tasks by priority"}
	for _, p := range []string{"high", "medium", "low"} {
		chart.Series = append(chart.Series, domain.ChartPoint{Label: p, Value: float64(st.ByPriority[p])})
	}
	return domain.Success(TaskChart, chart), nil
}

func (b *builtins) memoryRecall(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return domain.ToolResult{}, err
	}
	hits, err := b.deps.Memory.Query(ctx, query, recallLimit)
	if err != nil {
		return domain.ToolResult{}, err
	}
	table := domain.TablePayload{Columns: []string{"#", "Fragment"}, Rows: [][]string{}}
	for i, h := range hits {
		table.Rows = append(table.Rows, []string{strconv.Itoa(i + 1), h})
	}
	return domain.Success(MemoryRecall, table), nil
}

func (b *builtins) memoryStore(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	key, err := stringArg(args, "key")
	if err != nil {
		return domain.ToolResult{}, err
	}
	text, err := stringArg(args, "text")
	if err != nil {
		return domain.ToolResult{}, err
	}
	var opts []memory.StoreOption
	if _, ok := args["tags"]; ok {
		tags, err := stringsArg(args, "tags")
		if err != nil {
			return domain.ToolResult{}, err
		}
		opts = append(opts, memory.WithTags(tags...))
	}
	rec, err := b.deps.Memory.Store(ctx, key, text, opts...)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return domain.Success(MemoryStore, domain.MessagePayload{
		Text: fmt.Sprintf("Stored %q: %s", rec.Key, rec.Summary),
	}), nil
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredArg, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgType, name)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, name string) (string, error) {
	if v, ok := args[name]; !ok || v == nil {
		return "", nil
	}
	return stringArg(args, name)
}

// stringsArg accepts a JSON array of strings as decoded by either the model
// client or encoding/json.
func stringsArg(args map[string]any, name string) ([]string, error) {
	switch v := args[name].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain strings", ErrInvalidArgType, name)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredArg, name)
	default:
		return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidArgType, name)
	}
}
