package trust

import "testing"

func TestClassifyInitialTrust(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want Level
	}{
		{
			name: "no provider is system",
			ctx:  Context{},
			want: LevelSystem,
		},
		{
			name: "heartbeat provider is system",
			ctx:  Context{MessageProvider: "heartbeat"},
			want: LevelSystem,
		},
		{
			name: "cron provider is system",
			ctx:  Context{MessageProvider: "cron"},
			want: LevelSystem,
		},
		{
			name: "spawned sub-agent is local",
			ctx:  Context{MessageProvider: "dm", SpawnedBy: "parent-agent"},
			want: LevelLocal,
		},
		{
			name: "owner dm is owner",
			ctx:  Context{MessageProvider: "dm", SenderIsOwner: true},
			want: LevelOwner,
		},
		{
			name: "owner in group is shared",
			ctx:  Context{MessageProvider: "group", SenderIsOwner: true, GroupID: "g1"},
			want: LevelShared,
		},
		{
			name: "known non-owner sender is external",
			ctx:  Context{MessageProvider: "dm", SenderID: "user-123"},
			want: LevelExternal,
		},
		{
			name: "unknown sender is untrusted",
			ctx:  Context{MessageProvider: "dm"},
			want: LevelUntrusted,
		},
		{
			name: "spawned takes priority over owner",
			ctx:  Context{MessageProvider: "dm", SenderIsOwner: true, SpawnedBy: "parent"},
			want: LevelLocal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyInitialTrust(tt.ctx); got != tt.want {
				t.Errorf("ClassifyInitialTrust(%+v) = %v, want %v", tt.ctx, got, tt.want)
			}
		})
	}
}
