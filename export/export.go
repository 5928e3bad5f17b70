package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/metrics"
	"github.com/vinayprograms/taskkit/task"
)

// Format selects a snapshot rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat resolves a format name, accepting common short forms.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errors.Validation(fmt.Sprintf("unknown export format %q", s))
	}
}

// TagEntry is one row of the tag index: a normalized tag, how many
// tasks carry it, and which.
type TagEntry struct {
	Tag     string   `json:"tag" yaml:"tag"`
	Count   int      `json:"count" yaml:"count"`
	TaskIDs []string `json:"task_ids" yaml:"task_ids"`
}

// Snapshot is a point-in-time view of the record set plus derived
// aggregates, ready for rendering. Building and rendering a snapshot
// never mutates engine state.
type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Tasks       []*task.Task     `json:"tasks" yaml:"tasks"`
	Metrics     *metrics.Metrics `json:"metrics" yaml:"metrics"`
	Tags        []TagEntry       `json:"tags" yaml:"tags"`
}

// BuildSnapshot assembles a snapshot from a record-set copy. The
// records are used as given; callers pass defensive clones.
func BuildSnapshot(records []*task.Task, now time.Time) *Snapshot {
	byTag := make(map[string][]string)
	for _, t := range records {
		for _, tag := range t.Tags {
			byTag[tag] = append(byTag[tag], t.ID)
		}
	}

	tags := make([]TagEntry, 0, len(byTag))
	for tag, ids := range byTag {
		sort.Strings(ids)
		tags = append(tags, TagEntry{Tag: tag, Count: len(ids), TaskIDs: ids})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Tag < tags[j].Tag })

	return &Snapshot{
		GeneratedAt: now,
		Tasks:       records,
		Metrics:     metrics.Compute(records, now),
		Tags:        tags,
	}
}

// Render serializes the snapshot in the requested format.
func Render(s *Snapshot, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return renderMarkdown(s), nil
	case FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "rendering JSON snapshot")
		}
		return data, nil
	case FormatYAML:
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, errors.Wrap(err, "rendering YAML snapshot")
		}
		return data, nil
	default:
		return nil, errors.Validation(fmt.Sprintf("unknown export format %q", f))
	}
}

// stateOrder fixes the section order of the markdown report.
var stateOrder = []task.State{
	task.StateActive,
	task.StatePending,
	task.StateCompleted,
	task.StateArchived,
}

var stateHeadings = map[task.State]string{
	task.StateActive:    "Active",
	task.StatePending:   "Pending",
	task.StateCompleted: "Completed",
	task.StateArchived:  "Archived",
}

func renderMarkdown(s *Snapshot) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Task Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total tasks | %d |\n", s.Metrics.Total)
	for _, state := range stateOrder {
		fmt.Fprintf(&b, "| %s | %d |\n", stateHeadings[state], s.Metrics.ByState[state])
	}
	fmt.Fprintf(&b, "| Completion rate | %.0f%% |\n", s.Metrics.CompletionRate*100)
	if s.Metrics.AvgCompletionTime > 0 {
		fmt.Fprintf(&b, "| Avg completion time | %s |\n", s.Metrics.AvgCompletionTime.Round(time.Second))
	}
	fmt.Fprintf(&b, "| Completed today | %d |\n", s.Metrics.CompletedToday)
	fmt.Fprintf(&b, "| Completed this week | %d |\n", s.Metrics.CompletedThisWeek)
	b.WriteString("\n")

	for _, state := range stateOrder {
		tasks := tasksInState(s.Tasks, state)
		if len(tasks) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", stateHeadings[state])
		for _, t := range tasks {
			mark := " "
			if state == task.StateCompleted || state == task.StateArchived {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s", mark, t.Content)
			if len(t.Tags) > 0 {
				fmt.Fprintf(&b, " _(%s)_", strings.Join(t.Tags, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "## Tags\n\n")
		for _, entry := range s.Tags {
			fmt.Fprintf(&b, "- %s (%d)\n", entry.Tag, entry.Count)
		}
		b.WriteString("\n")
	}

	return []byte(b.String())
}

func tasksInState(records []*task.Task, state task.State) []*task.Task {
	var out []*task.Task
	for _, t := range records {
		if t.State == state {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}
