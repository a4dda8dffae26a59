package resources

import (
	"fmt"
	"strings"
)

// Assignment is one column update carried by a ChangeSet. A nil Value writes
// SQL NULL.
type Assignment struct {
	Column string
	Value  any
}

// ChangeSet accumulates the minimal set of column assignments for an update.
// Compare only records fields that were sent and actually differ from the
// stored value, so an unchanged request produces an empty set and no write.
type ChangeSet struct {
	assignments []Assignment
}

// Compare records an assignment when the field was sent and differs from
// current. Cleared fields become NULL.
func (cs *ChangeSet) Compare(column string, opt Opt, current string) {
	if !opt.Set || opt.Value == current {
		return
	}
	if opt.Value == "" {
		cs.Force(column, nil)
		return
	}
	cs.Force(column, opt.Value)
}

// Force records an assignment unconditionally, replacing any earlier
// assignment for the same column.
func (cs *ChangeSet) Force(column string, value any) {
	for i := range cs.assignments {
		if cs.assignments[i].Column == column {
			cs.assignments[i].Value = value
			return
		}
	}
	cs.assignments = append(cs.assignments, Assignment{Column: column, Value: value})
}

// Empty reports whether no assignment was recorded.
func (cs *ChangeSet) Empty() bool { return len(cs.assignments) == 0 }

// Has reports whether an assignment for column was recorded.
func (cs *ChangeSet) Has(column string) bool {
	for _, a := range cs.assignments {
		if a.Column == column {
			return true
		}
	}
	return false
}

// Assignments returns the recorded assignments in insertion order.
func (cs *ChangeSet) Assignments() []Assignment { return cs.assignments }

// SetClause renders a SQL SET clause with placeholders numbered from start,
// returning the clause and its arguments.
func (cs *ChangeSet) SetClause(start int) (string, []any) {
	parts := make([]string, 0, len(cs.assignments))
	args := make([]any, 0, len(cs.assignments))
	for i, a := range cs.assignments {
		parts = append(parts, fmt.Sprintf("%s = $%d", a.Column, start+i))
		args = append(args, a.Value)
	}
	return strings.Join(parts, ", "), args
}
