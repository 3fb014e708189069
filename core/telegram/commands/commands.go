package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Usage is the argument synopsis, e.g. "<user_id>"; empty for commands without arguments.
	Usage     string
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Synopsis returns the command followed by its usage, for help replies.
func (c Command) Synopsis(name string) string {
	if c.Usage == "" {
		return name
	}
	return name + " " + c.Usage
}
