package enforcement

import (
	"regexp"
	"strconv"

	"github.com/openclaw/provenance-core/pkg/logging"
	"github.com/openclaw/provenance-core/pkg/trust"
)

var approveCommand = regexp.MustCompile(`(?i)\.approve\s+(\S+)\s+([0-9a-f]{8})(?:\s+(\d+))?`)
var resetTrustCommand = regexp.MustCompile(`(?i)\.reset-trust(?:\s+(\S+))?`)

// handleOwnerCommands looks for .approve and .reset-trust in the last user
// message and dispatches them. Both require isOwner; a non-owner attempt is
// logged and ignored rather than rejected with an error, since the command
// was never meant for anyone but the host's own sender-identity check.
func (d *Driver) handleOwnerCommands(session string, st *sessionState, lastUserMessage string, isOwner bool) {
	if m := approveCommand.FindStringSubmatch(lastUserMessage); m != nil {
		if !isOwner {
			d.logWarn(logging.CategoryEnforcement, "non_owner_command", "non-owner attempted .approve", map[string]any{"session_id": session})
			return
		}
		d.dispatchApprove(session, m[1], m[2], m[3])
		return
	}
	if m := resetTrustCommand.FindStringSubmatch(lastUserMessage); m != nil {
		if !isOwner {
			d.logWarn(logging.CategoryEnforcement, "non_owner_command", "non-owner attempted .reset-trust", map[string]any{"session_id": session})
			return
		}
		d.dispatchResetTrust(session, st, m[1])
	}
}

func (d *Driver) dispatchApprove(session, target, code, minutesStr string) {
	var duration *int
	if minutesStr != "" {
		if m, err := strconv.Atoi(minutesStr); err == nil {
			duration = &m
		}
	}
	if err := d.approvals.ApproveWithCode(session, target, code, duration); err != nil {
		d.logWarn(logging.CategoryApproval, "approve_rejected", err.Error(), map[string]any{"session_id": session, "target": target})
		return
	}
	d.logInfo(logging.CategoryApproval, "approved", "approval code accepted", map[string]any{"session_id": session, "target": target})
}

func (d *Driver) dispatchResetTrust(session string, st *sessionState, levelStr string) {
	level := trust.LevelSystem
	if levelStr != "" {
		candidate := trust.Level(levelStr)
		if !trust.Valid(candidate) {
			d.logWarn(logging.CategoryEnforcement, "invalid_trust_level", "invalid .reset-trust level, ignoring", map[string]any{"session_id": session, "level": levelStr})
			return
		}
		level = candidate
	}

	if st.graph != nil {
		st.graph.ResetTaint(level)
	}
	st.blockedTools = make(map[string]string)
	d.approvals.ClearTurnScoped(session)
	d.watermarks.Clear(session)
	if err := d.watermarks.Flush(); err != nil {
		d.logWarn(logging.CategoryWatermark, "watermark_io_error", err.Error(), map[string]any{"session_id": session})
	}
	d.logInfo(logging.CategoryEnforcement, "trust_reset", "owner reset trust", map[string]any{"session_id": session, "level": string(level)})
}
