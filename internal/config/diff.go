package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SourceChannelChanged is set when the channel admitted by the inbound
	// relay differs, whether through the names or the staging switch.
	SourceChannelChanged bool
	NewSourceChannel     string

	ThankWordsChanged bool
	NewThankWords     []string
}

// Empty reports whether d carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SourceChannelChanged && !d.ThankWordsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if oldCh, newCh := old.Discord.ActiveSourceChannel(), new.Discord.ActiveSourceChannel(); oldCh != newCh {
		d.SourceChannelChanged = true
		d.NewSourceChannel = newCh
	}

	if !slices.Equal(old.Relay.ThankWords, new.Relay.ThankWords) {
		d.ThankWordsChanged = true
		d.NewThankWords = slices.Clone(new.Relay.ThankWords)
	}

	return d
}
