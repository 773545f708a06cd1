// Package validation checks workflows for structural errors and
// best-practice deviations.
package validation

import (
	"strconv"
)

// Severity classifies an issue. Only errors affect validity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding. JobID and StepIndex (0-based) locate the
// offending entity when there is one.
type Issue struct {
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	JobID     string   `json:"job_id,omitempty"`
	StepIndex *int     `json:"step_index,omitempty"`
}

// Result is the outcome of validating a workflow. Issues are in
// declaration order: workflow-level first, then each job and its steps.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Errors returns the error-severity issues in order.
func (r Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity issues in order.
func (r Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r Result) filter(severity Severity) []Issue {
	out := make([]Issue, 0, len(r.Issues))

	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}

	return out
}

// String formats the issue as one line with its location.
func (i Issue) String() string {
	location := ""

	switch {
	case i.JobID != "" && i.StepIndex != nil:
		location = " [" + i.JobID + ", step " + strconv.Itoa(*i.StepIndex+1) + "]"
	case i.JobID != "":
		location = " [" + i.JobID + "]"
	}

	return string(i.Severity) + ": " + i.Message + location
}

type collector struct {
	issues []Issue
}

func (c *collector) add(severity Severity, jobID string, stepIndex int, message string) {
	issue := Issue{Severity: severity, Message: message, JobID: jobID}
	if stepIndex >= 0 {
		issue.StepIndex = &stepIndex
	}

	c.issues = append(c.issues, issue)
}

func (c *collector) addError(jobID string, stepIndex int, message string) {
	c.add(SeverityError, jobID, stepIndex, message)
}

func (c *collector) addWarning(jobID string, stepIndex int, message string) {
	c.add(SeverityWarning, jobID, stepIndex, message)
}

func (c *collector) result() Result {
	valid := true

	for _, issue := range c.issues {
		if issue.Severity == SeverityError {
			valid = false

			break
		}
	}

	issues := c.issues
	if issues == nil {
		issues = []Issue{}
	}

	return Result{Valid: valid, Issues: issues}
}
