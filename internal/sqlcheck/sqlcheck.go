// Package sqlcheck runs a syntax check over migration SQL before anything is
// executed. It parses with the real PostgreSQL grammar, so it only applies to
// the postgresql dialect; other dialects skip the check.
package sqlcheck

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Issue is one syntax problem found in a migration file.
type Issue struct {
	Tag     string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Tag, i.Message)
}

// CheckSQL parses a statement batch and returns a descriptive error if it is
// not valid PostgreSQL.
func CheckSQL(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty migration")
	}
	if _, err := pg_query.Parse(content); err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}
	return nil
}

// CheckBatch validates a set of tagged statement batches and collects every
// issue rather than stopping at the first, so an operator sees all problems
// in one run.
func CheckBatch(batches map[string]string, order []string) []Issue {
	var issues []Issue
	for _, tag := range order {
		if err := CheckSQL(batches[tag]); err != nil {
			issues = append(issues, Issue{Tag: tag, Message: err.Error()})
		}
	}
	return issues
}
