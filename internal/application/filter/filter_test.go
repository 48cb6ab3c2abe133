package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/todovault/core/internal/domain/entities"
)

func due(t time.Time) *time.Time { return &t }

func titles(todos []*entities.Todo) []string {
	out := make([]string, len(todos))
	for i, todo := range todos {
		out[i] = todo.Title
	}
	return out
}

func sampleTodos() []*entities.Todo {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []*entities.Todo{
		{Title: "buy milk", IsCompleted: false, DueDate: due(base.Add(48 * time.Hour))},
		{Title: "Write report", IsCompleted: true, DueDate: due(base.Add(24 * time.Hour))},
		{Title: "call dentist", IsCompleted: false, DueDate: nil},
		{Title: "Milk the cow", IsCompleted: false, DueDate: due(base)},
	}
}

func TestApplyEmptyInput(t *testing.T) {
	result := Apply(nil, DefaultSpec())
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	todos := sampleTodos()
	original := titles(todos)

	Apply(todos, Spec{Filter: FilterAll, Sort: SortTitleAsc})

	assert.Equal(t, original, titles(todos))
}

func TestApplyQueryIsCaseInsensitiveSubstring(t *testing.T) {
	result := Apply(sampleTodos(), Spec{Query: "MILK", Filter: FilterAll, Sort: SortTitleAsc})
	assert.Equal(t, []string{"Milk the cow", "buy milk"}, titles(result))
}

func TestApplyCompletionFilters(t *testing.T) {
	todos := sampleTodos()

	active := Apply(todos, Spec{Filter: FilterActive, Sort: SortTitleAsc})
	assert.Equal(t, []string{"Milk the cow", "buy milk", "call dentist"}, titles(active))

	completed := Apply(todos, Spec{Filter: FilterCompleted, Sort: SortTitleAsc})
	assert.Equal(t, []string{"Write report"}, titles(completed))

	all := Apply(todos, Spec{Filter: FilterAll, Sort: SortTitleAsc})
	assert.Len(t, all, 4)
}

func TestApplySortByDate(t *testing.T) {
	todos := sampleTodos()

	// Undated tasks land last ascending and first descending.
	asc := Apply(todos, Spec{Filter: FilterAll, Sort: SortDateAsc})
	assert.Equal(t, []string{"Milk the cow", "Write report", "buy milk", "call dentist"}, titles(asc))

	desc := Apply(todos, Spec{Filter: FilterAll, Sort: SortDateDesc})
	assert.Equal(t, []string{"call dentist", "buy milk", "Write report", "Milk the cow"}, titles(desc))
}

func TestApplySortByTitle(t *testing.T) {
	todos := sampleTodos()

	asc := Apply(todos, Spec{Filter: FilterAll, Sort: SortTitleAsc})
	assert.Equal(t, []string{"Milk the cow", "Write report", "buy milk", "call dentist"}, titles(asc))

	desc := Apply(todos, Spec{Filter: FilterAll, Sort: SortTitleDesc})
	assert.Equal(t, []string{"call dentist", "buy milk", "Write report", "Milk the cow"}, titles(desc))
}

func TestApplySortIsStable(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	todos := []*entities.Todo{
		{Title: "first", DueDate: due(base)},
		{Title: "second", DueDate: due(base)},
		{Title: "third", DueDate: due(base)},
	}

	result := Apply(todos, Spec{Filter: FilterAll, Sort: SortDateAsc})
	assert.Equal(t, []string{"first", "second", "third"}, titles(result))
}

func TestDefaultSpec(t *testing.T) {
	spec := DefaultSpec()
	assert.Equal(t, FilterAll, spec.Filter)
	assert.Equal(t, SortDateDesc, spec.Sort)
	assert.Empty(t, spec.Query)
}
