package trust

// Context carries the fields of an agent turn's context needed to assign
// its initial trust level. Fields mirror the host's agent context payload
// (messageProvider, senderId, senderIsOwner, groupId, spawnedBy).
type Context struct {
	MessageProvider string
	SenderID        string
	SenderIsOwner   bool
	GroupID         string
	SpawnedBy       string
}

// heartbeatProviders are message providers that never carry user-controlled
// content; turns originating from them are system-trusted.
var heartbeatProviders = map[string]bool{
	"heartbeat": true,
	"cron":      true,
}

// ClassifyInitialTrust assigns the initial trust level for a turn. The six
// rules are evaluated in order; the first match wins.
func ClassifyInitialTrust(ctx Context) Level {
	if ctx.MessageProvider == "" || heartbeatProviders[ctx.MessageProvider] {
		return LevelSystem
	}
	if ctx.SpawnedBy != "" {
		return LevelLocal
	}
	if ctx.SenderIsOwner && ctx.GroupID == "" {
		return LevelOwner
	}
	if ctx.SenderIsOwner && ctx.GroupID != "" {
		return LevelShared
	}
	if ctx.SenderID != "" {
		return LevelExternal
	}
	return LevelUntrusted
}
