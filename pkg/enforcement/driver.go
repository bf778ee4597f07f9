package enforcement

import (
	"fmt"
	"strings"
	"sync"

	"github.com/openclaw/provenance-core/pkg/approval"
	"github.com/openclaw/provenance-core/pkg/logging"
	"github.com/openclaw/provenance-core/pkg/policy"
	"github.com/openclaw/provenance-core/pkg/provenance"
	"github.com/openclaw/provenance-core/pkg/trust"
	"github.com/openclaw/provenance-core/pkg/watermark"
)

// sessionState is the per-session transient state the driver keeps between
// hook calls within and across turns. last_llm_node and blocked_tools exist
// only to let the driver link edges and enforce Layer 2 blocking; neither
// is itself persisted.
type sessionState struct {
	graph        *provenance.Graph
	lastLLMNode  *provenance.NodeID
	blockedTools map[string]string // lower(tool) -> reason
	iteration    int
}

// Driver wires C2-C5 to the seven lifecycle events. One Driver instance
// serves every session in a process; all cross-session state is guarded by
// a single mutex, matching the teacher's session-keyed middleware state.
type Driver struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	cfg           *policy.Config
	toolTrust     *trust.Table
	watermarks    *watermark.Store
	approvals     *approval.Store
	archive       *provenance.Archive
	logger        *logging.Logger
	developerMode bool
}

// New creates a Driver. cfg, toolTrust, watermarks, approvals, and archive
// are all required; logger may be nil, in which case logging is a no-op.
func New(cfg *policy.Config, toolTrust *trust.Table, watermarks *watermark.Store, approvals *approval.Store, archive *provenance.Archive, logger *logging.Logger, developerMode bool) *Driver {
	return &Driver{
		sessions:      make(map[string]*sessionState),
		cfg:           cfg,
		toolTrust:     toolTrust,
		watermarks:    watermarks,
		approvals:     approvals,
		archive:       archive,
		logger:        logger,
		developerMode: developerMode,
	}
}

// GraphSummary returns the current (possibly sealed) graph summary for a
// session, for a read-only status view. The second return is false if the
// session has no graph yet.
func (d *Driver) GraphSummary(session string) (provenance.Summary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.sessions[session]
	if !ok || st.graph == nil {
		return provenance.Summary{}, false
	}
	return st.graph.Summary(), true
}

func (d *Driver) state(session string) *sessionState {
	st, ok := d.sessions[session]
	if !ok {
		st = &sessionState{blockedTools: make(map[string]string)}
		d.sessions[session] = st
	}
	return st
}

func (d *Driver) logInfo(category logging.Category, eventType, message string, details map[string]any) {
	if d.logger == nil {
		return
	}
	d.logger.Info(category, eventType, message, details)
}

func (d *Driver) logWarn(category logging.Category, eventType, message string, details map[string]any) {
	if d.logger == nil {
		return
	}
	d.logger.Warn(category, eventType, message, details)
}

// OnStartup emits a loud warning if the host's internal-hook feature flag
// is disabled; without it none of the other six events ever fire, and the
// driver is otherwise a silent no-op.
func (d *Driver) OnStartup(internalHookFlagEnabled bool) {
	if internalHookFlagEnabled {
		d.logInfo(logging.CategoryEnforcement, "startup", "enforcement driver registered", nil)
		return
	}
	d.logWarn(logging.CategoryEnforcement, "missing_host_feature_flag",
		"host internal-hook feature flag is disabled; provenance enforcement will not run", nil)
}

// OnContextAssembled handles E1: starts a fresh graph for the turn,
// classifies its initial trust, and folds in a worse persisted watermark.
// If the previous turn never reached OnBeforeResponseEmit, its dangling
// graph is sealed and archived first.
func (d *Driver) OnContextAssembled(agentCtx AgentContext, systemPrompt string, messageCount int) *HookResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	session := agentCtx.SessionKey
	st := d.state(session)
	if st.graph != nil && !st.graph.Sealed() {
		d.archiveDangling(session, st)
	}

	initial := trust.ClassifyInitialTrust(trust.Context{
		MessageProvider: agentCtx.MessageProvider,
		SenderID:        agentCtx.SenderID,
		SenderIsOwner:   agentCtx.isOwner(),
		GroupID:         agentCtx.GroupID,
		SpawnedBy:       agentCtx.SpawnedBy,
	})

	g := provenance.New(session, d.toolTrust)
	g.RecordContextAssembled(countTokens(systemPrompt), messageCount, initial)

	watermarkLevel := initial
	if entry, ok := d.watermarks.Get(session); ok && trust.Order(entry.Level) > trust.Order(initial) {
		g.RecordInheritedTaint(entry.Level, entry.Reason)
		watermarkLevel = entry.Level
	}

	st.graph = g
	st.lastLLMNode = nil
	st.blockedTools = make(map[string]string)
	st.iteration = 0

	d.logInfo(logging.CategoryTurn, "turn_start", fmt.Sprintf("turn started: initial=%s effective=%s", initial, g.MaxTaint()), map[string]any{
		"session_id":     session,
		"initial_trust":  string(initial),
		"watermark":      string(watermarkLevel),
		"effective_taint": string(g.MaxTaint()),
	})
	return nil
}

// archiveDangling seals and archives a graph left over from a turn that
// never reached OnBeforeResponseEmit, per the cancellation rule in the
// concurrency model.
func (d *Driver) archiveDangling(session string, st *sessionState) {
	summary := st.graph.Seal()
	if d.archive != nil {
		d.archive.Add(st.graph)
	}
	d.logWarn(logging.CategoryGraph, "dangling_graph_archived", "sealed a graph abandoned by an incomplete turn", map[string]any{
		"session_id": session,
		"max_taint":  string(summary.MaxTaint),
	})
}

// OnBeforeLLMCall handles E2: records the llm_call node, parses any
// owner-only command from the last user message, then evaluates policy
// against the supplied tool list.
func (d *Driver) OnBeforeLLMCall(session string, iteration int, tools []string, lastUserMessage string, senderIsOwner *bool) *HookResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(session)
	if st.graph == nil {
		st.graph = provenance.New(session, d.toolTrust)
	}
	nodeID := st.graph.RecordLLMCall(iteration, len(tools))
	st.lastLLMNode = &nodeID
	st.iteration = iteration

	owner := true
	if senderIsOwner != nil {
		owner = *senderIsOwner
	}
	d.handleOwnerCommands(session, st, lastUserMessage, owner)

	resolution := policy.EvaluateWithApprovals(st.graph, tools, d.cfg, d.approvals, session)
	if resolution.Block {
		return &HookResponse{Block: true, BlockReason: resolution.BlockReason}
	}

	// blocked_tools always reflects the latest evaluation, not a sticky
	// accumulation: a tool approved since the last call must stop being
	// blocked at the dispatch layer too.
	st.blockedTools = make(map[string]string)
	if len(resolution.ToolRemovals) == 0 {
		return nil
	}

	removed := make(map[string]bool, len(resolution.ToolRemovals))
	for _, name := range resolution.ToolRemovals {
		removed[strings.ToLower(name)] = true
	}

	var code string
	var haveCode bool
	if len(resolution.PendingConfirmations) > 0 {
		pending := make([]string, 0, len(resolution.PendingConfirmations))
		for _, c := range resolution.PendingConfirmations {
			pending = append(pending, c.Tool)
		}
		var err error
		code, err = d.approvals.AddPendingBatch(session, pending)
		haveCode = err == nil
		if err != nil {
			d.logWarn(logging.CategoryApproval, "approval_code_mint_failed", err.Error(), map[string]any{"session_id": session})
		}
	}

	reasonFor := func(name string) string {
		for _, c := range resolution.PendingConfirmations {
			if strings.EqualFold(c.Tool, name) {
				return c.Reason
			}
		}
		return "restricted at current taint level"
	}

	filtered := make([]string, 0, len(tools))
	for _, name := range tools {
		key := strings.ToLower(name)
		if removed[key] {
			reason := reasonFor(name)
			if haveCode {
				reason = fmt.Sprintf("%s (approval code %s)", reason, code)
			}
			st.blockedTools[key] = reason
			st.graph.RecordBlockedTool(name, reason, iteration)
			continue
		}
		filtered = append(filtered, name)
	}

	if haveCode {
		ttl := d.approvals.GetCodeTTLSeconds(session)
		d.logInfo(logging.CategoryApproval, "approval_instructions", fmt.Sprintf("approval code %s (ttl %ds)", code, ttl), map[string]any{
			"session_id": session,
			"code":       code,
			"ttl":        ttl,
			"tools":      resolution.PendingConfirmations,
		})
	}

	return &HookResponse{Tools: filtered}
}

// OnBeforeToolCall handles E3, the second enforcement layer: a tool the
// model names despite Layer 1 filtering (e.g. recalled from history) is
// still blocked here.
func (d *Driver) OnBeforeToolCall(session, toolName string) *HookResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(session)
	reason, blocked := st.blockedTools[strings.ToLower(toolName)]
	if !blocked {
		return nil
	}
	return &HookResponse{Block: true, BlockReason: reason}
}

// OnAfterLLMCall handles E4: records a tool_call node (raising the
// high-water taint mark) for each tool the model actually invoked.
func (d *Driver) OnAfterLLMCall(session string, iteration int, toolCalls []string) *HookResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(session)
	if st.graph == nil {
		return nil
	}
	for _, name := range toolCalls {
		id := st.graph.RecordToolCall(name, iteration, st.lastLLMNode, nil)
		level := d.toolTrust.ToolTrust(name)
		d.logInfo(logging.CategoryGraph, "tool_call", fmt.Sprintf("%s(%s)", name, level), map[string]any{
			"session_id": session,
			"node_id":    int(id),
			"tool":       name,
			"trust":      string(level),
		})
	}
	return nil
}

// OnLoopIterationEnd handles E5: records iteration metadata for logging.
func (d *Driver) OnLoopIterationEnd(session string, iteration int, messageCount, toolCallsMade *int, willContinue *bool) *HookResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	details := map[string]any{"session_id": session, "iteration": iteration}
	if messageCount != nil {
		details["message_count"] = *messageCount
	}
	if toolCallsMade != nil {
		details["tool_calls_made"] = *toolCallsMade
	}
	if willContinue != nil {
		details["will_continue"] = *willContinue
	}
	d.logInfo(logging.CategoryTurn, "loop_iteration_end", "", details)
	return nil
}

// OnBeforeResponseEmit handles E6: records the output node, clears
// turn-scoped approvals, seals and archives the graph, escalates and
// flushes the watermark if taint moved past owner, and clears blocked
// tools. In developer mode it prepends a one-line taint header to the
// outbound content.
func (d *Driver) OnBeforeResponseEmit(session, content string) *HookResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(session)
	if st.graph == nil {
		return nil
	}
	st.graph.RecordOutput(countTokens(content))
	d.approvals.ClearTurnScoped(session)

	summary := st.graph.Seal()
	if d.archive != nil {
		d.archive.Add(st.graph)
	}

	if trust.Order(summary.MaxTaint) > trust.Order(trust.LevelOwner) {
		reason := "turn escalated taint"
		if len(summary.ToolsUsed) > 0 {
			reason = fmt.Sprintf("escalated via %s", summary.ToolsUsed[len(summary.ToolsUsed)-1])
		}
		if d.watermarks.Escalate(session, summary.MaxTaint, reason, reason) {
			if err := d.watermarks.Flush(); err != nil {
				d.logWarn(logging.CategoryWatermark, "watermark_io_error", err.Error(), map[string]any{"session_id": session})
			}
		}
	}

	st.blockedTools = make(map[string]string)

	if d.developerMode {
		header := fmt.Sprintf("[taint: %s]\n", summary.MaxTaint)
		return &HookResponse{Content: header + content}
	}
	return nil
}
