// Package enforcement wires the trust classifier, provenance graph,
// watermark store, policy engine, and approval store to the seven
// lifecycle events a host agent runtime fires per turn. It is the only
// package in this module that mutates more than one of those stores in a
// single call.
package enforcement

// AgentContext mirrors the host's per-turn agent context payload.
type AgentContext struct {
	AgentID         string
	SessionKey      string
	WorkspaceDir    string
	MessageProvider string
	SenderID        string
	SenderName      string
	SenderIsOwner   *bool
	GroupID         string
	SpawnedBy       string
}

// isOwner reports whether the sender is the owner. Absent (nil) defaults to
// true: approval codes self-secure and .reset-trust is explicit, so an
// older host that doesn't supply the field should not be silently locked
// out of both commands.
func (a AgentContext) isOwner() bool {
	if a.SenderIsOwner == nil {
		return true
	}
	return *a.SenderIsOwner
}

// ToolDescriptor is one tool entry from a before_llm_call payload.
type ToolDescriptor struct {
	Name string
}

// Message is one entry from a before_llm_call payload's message history.
type Message struct {
	Role    string
	Content string
}

// ToolCallDescriptor is one tool the model actually invoked, from an
// after_llm_call payload.
type ToolCallDescriptor struct {
	Name string
}

// HookResponse is the return contract shared by every lifecycle event: a
// nil response means "no action"; a non-nil one carries at most one of a
// replacement tool list, a block directive, or rewritten content.
type HookResponse struct {
	Tools       []string
	Block       bool
	BlockReason string
	Content     string
}
