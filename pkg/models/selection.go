package models

// NodeType discriminates what the editor selection points at.
type NodeType string

const (
	NodeTypeNone    NodeType = ""
	NodeTypeJob     NodeType = "job"
	NodeTypeStep    NodeType = "step"
	NodeTypeTrigger NodeType = "trigger"
)

// SelectedNode is the transient editor selection. It is never part of history.
type SelectedNode struct {
	Type   NodeType `json:"type,omitempty"    validate:"omitempty,oneof=job step trigger"`
	JobID  string   `json:"job_id,omitempty"  validate:"required_if=Type job,required_if=Type step"`
	StepID string   `json:"step_id,omitempty" validate:"required_if=Type step"`
}

func (n SelectedNode) IsZero() bool {
	return n == SelectedNode{}
}
