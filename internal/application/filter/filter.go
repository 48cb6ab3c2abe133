package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/todovault/core/internal/domain/entities"
)

// Filter selects tasks by completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Sort names the supported orderings.
type Sort string

const (
	SortDateAsc   Sort = "date_asc"
	SortDateDesc  Sort = "date_desc"
	SortTitleAsc  Sort = "title_asc"
	SortTitleDesc Sort = "title_desc"
)

// Spec describes one filter/search/sort pass over a task list.
type Spec struct {
	Query  string
	Filter Filter
	Sort   Sort
}

// DefaultSpec mirrors the initial list view: everything, newest due first.
func DefaultSpec() Spec {
	return Spec{Filter: FilterAll, Sort: SortDateDesc}
}

// Apply derives the rendered task list from todos. It is pure: the input
// slice is never reordered or mutated, and empty input yields an empty
// result. Sorting is stable. A missing due date compares as greatest, so
// undated tasks land last under ascending date order and first under
// descending.
func Apply(todos []*entities.Todo, spec Spec) []*entities.Todo {
	result := make([]*entities.Todo, 0, len(todos))

	query := strings.ToLower(strings.TrimSpace(spec.Query))
	for _, todo := range todos {
		if query != "" && !strings.Contains(strings.ToLower(todo.Title), query) {
			continue
		}

		switch spec.Filter {
		case FilterActive:
			if todo.IsCompleted {
				continue
			}
		case FilterCompleted:
			if !todo.IsCompleted {
				continue
			}
		}

		result = append(result, todo)
	}

	sort.SliceStable(result, lessFunc(result, spec.Sort))

	return result
}

func lessFunc(todos []*entities.Todo, by Sort) func(i, j int) bool {
	switch by {
	case SortDateAsc:
		return func(i, j int) bool {
			return dueBefore(todos[i].DueDate, todos[j].DueDate)
		}
	case SortTitleAsc:
		return func(i, j int) bool {
			return todos[i].Title < todos[j].Title
		}
	case SortTitleDesc:
		return func(i, j int) bool {
			return todos[i].Title > todos[j].Title
		}
	default: // SortDateDesc
		return func(i, j int) bool {
			return dueBefore(todos[j].DueDate, todos[i].DueDate)
		}
	}
}

// dueBefore orders due dates with nil as greatest.
func dueBefore(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}
