// Package registry holds the set of bot identifiers whose replies are spoken
// aloud. The set is assembled once from configuration and is read-only
// afterwards.
package registry

import (
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the environment view of the voice bot configuration.
type Config struct {
	// Bots is the primary comma separated list of voice bots.
	Bots []string `env:"AIKNVM_BOTS_VOICE" envSeparator:","`

	// Legacy single-bot overrides kept for older deployments.
	BotEnglish string `env:"AIKNVM_BOT_ENGLISH"`
	BotLook    string `env:"AIKNVM_BOT_LOOK"`
}

// ConfigFromEnv reads Config from the process environment.
func ConfigFromEnv() (Config, error) {
	return env.ParseAs[Config]()
}

// Registry is an immutable set of voice-eligible bot identifiers.
type Registry struct {
	ids map[string]struct{}
}

// New builds a Registry from a primary list and any legacy overrides.
// Entries are trimmed and empty entries are ignored.
func New(primary []string, legacy ...string) *Registry {
	r := &Registry{ids: make(map[string]struct{}, len(primary)+len(legacy))}
	for _, list := range [][]string{primary, legacy} {
		for _, id := range list {
			if id = strings.TrimSpace(id); id != "" {
				r.ids[id] = struct{}{}
			}
		}
	}
	return r
}

// Merge returns a Registry holding the union of all the given configs.
func Merge(configs ...Config) *Registry {
	var primary, legacy []string
	for _, c := range configs {
		primary = append(primary, c.Bots...)
		legacy = append(legacy, c.BotEnglish, c.BotLook)
	}
	return New(primary, legacy...)
}

// ParseList splits a comma separated list, dropping blank entries.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsVoiceBot reports whether botID is a configured voice bot. The empty
// identifier is never a voice bot.
func (r *Registry) IsVoiceBot(botID string) bool {
	if r == nil || botID == "" {
		return false
	}
	_, ok := r.ids[botID]
	return ok
}

// IDs returns the configured identifiers in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of configured voice bots.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
