// Package export renders point-in-time snapshots of the record set.
// BuildSnapshot assembles tasks, derived metrics, and a tag index;
// Render serializes the result as markdown, JSON, or YAML. Both are pure
// functions over their inputs, safe to call concurrently with ongoing
// writes because they only ever see a snapshot copy.
package export
