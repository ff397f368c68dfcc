package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/crossing/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Discord: config.DiscordConfig{SourceChannel: "eco-chat"},
		Relay:   config.RelayConfig{ThankWords: []string{"thx"}},
	}
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_SourceChannel(t *testing.T) {
	t.Parallel()
	base := config.DiscordConfig{SourceChannel: "eco-chat", StagingSourceChannel: "eco-staging"}
	tests := []struct {
		name    string
		old     config.DiscordConfig
		new     config.DiscordConfig
		changed bool
		want    string
	}{
		{name: "unchanged", old: base, new: base},
		{
			name:    "renamed",
			old:     base,
			new:     config.DiscordConfig{SourceChannel: "game-chat", StagingSourceChannel: "eco-staging"},
			changed: true,
			want:    "game-chat",
		},
		{
			name:    "staging toggled",
			old:     base,
			new:     config.DiscordConfig{SourceChannel: "eco-chat", StagingSourceChannel: "eco-staging", Staging: true},
			changed: true,
			want:    "eco-staging",
		},
		{
			name: "inactive name changed",
			old:  base,
			new:  config.DiscordConfig{SourceChannel: "eco-chat", StagingSourceChannel: "other"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := config.Diff(&config.Config{Discord: tt.old}, &config.Config{Discord: tt.new})
			if d.SourceChannelChanged != tt.changed {
				t.Fatalf("SourceChannelChanged = %v, want %v", d.SourceChannelChanged, tt.changed)
			}
			if d.NewSourceChannel != tt.want {
				t.Errorf("NewSourceChannel = %q, want %q", d.NewSourceChannel, tt.want)
			}
		})
	}
}

func TestDiff_ThankWords(t *testing.T) {
	t.Parallel()
	old := &config.Config{Relay: config.RelayConfig{ThankWords: []string{"thx", "ty"}}}
	new := &config.Config{Relay: config.RelayConfig{ThankWords: []string{"thx", "danke"}}}

	d := config.Diff(old, new)
	if !d.ThankWordsChanged {
		t.Fatal("expected ThankWordsChanged=true")
	}
	if !slices.Equal(d.NewThankWords, []string{"thx", "danke"}) {
		t.Errorf("NewThankWords = %v", d.NewThankWords)
	}
}
