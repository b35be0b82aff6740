package backend

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Bot is a selectable chat persona.
type Bot struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	Image     string `json:"image"`
	Status    int    `json:"status"`

	// Priority orders the list; lower comes first. Bots without a numeric
	// priority sort last.
	Priority string `json:"priority,omitempty"`
}

// ParsePriority converts a bot priority to a sort key. Missing or
// non-numeric priorities map to +Inf.
func ParsePriority(p string) float64 {
	p = strings.TrimSpace(p)
	if p == "" {
		return math.Inf(1)
	}
	n, err := strconv.ParseFloat(p, 64)
	if err != nil || math.IsNaN(n) {
		return math.Inf(1)
	}
	return n
}

// SortBots orders bots by priority, keeping the server order for ties.
func SortBots(bots []Bot) {
	sort.SliceStable(bots, func(i, j int) bool {
		return ParsePriority(bots[i].Priority) < ParsePriority(bots[j].Priority)
	})
}

// ListBots fetches the selectable bots, without the default bot, sorted by
// priority.
func (c *Client) ListBots(ctx context.Context) ([]Bot, error) {
	var all []Bot
	if err := c.do(ctx, http.MethodGet, "/list-bot-chat", nil, &all); err != nil {
		return nil, err
	}

	bots := make([]Bot, 0, len(all))
	for _, b := range all {
		if c.defaultBot != "" && b.ID == c.defaultBot {
			continue
		}
		bots = append(bots, b)
	}
	SortBots(bots)
	return bots, nil
}
