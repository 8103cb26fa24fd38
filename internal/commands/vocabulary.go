package commands

import (
	"strings"
)

type kind int

const (
	cmdUnknown kind = iota
	cmdWant
	cmdRemove
	cmdClear
	cmdList
	cmdHelp
	cmdNotified
	cmdForgetAll
	cmdForget
)

// Command describes one entry of the chat vocabulary.
type Command struct {
	Name    string
	Aliases []string
	Args    string
	Summary string

	kind kind
}

var vocabulary = []Command{
	{Name: "want", Aliases: []string{"add"}, Args: "<dates...>", Summary: "watch dates (YYYY-MM-DD or YYYY/MM/DD)", kind: cmdWant},
	{Name: "remove", Aliases: []string{"unwant"}, Args: "<dates...>", Summary: "stop watching dates", kind: cmdRemove},
	{Name: "clear", Summary: "stop watching all dates", kind: cmdClear},
	{Name: "list", Summary: "show watched dates", kind: cmdList},
	{Name: "notified", Aliases: []string{"seen"}, Summary: "show alert counters", kind: cmdNotified},
	{Name: "forget", Args: "<dates...>", Summary: "reset alert counters for dates", kind: cmdForget},
	{Name: "forget_all", Aliases: []string{"unnotify_all"}, Summary: "reset all alert counters", kind: cmdForgetAll},
	{Name: "help", Aliases: []string{"start"}, Summary: "show this help", kind: cmdHelp},
}

var byWord = func() map[string]kind {
	m := map[string]kind{}
	for _, c := range vocabulary {
		m[c.Name] = c.kind
		for _, a := range c.Aliases {
			m[a] = c.kind
		}
	}
	return m
}()

// Vocabulary returns the supported commands in help order.
func Vocabulary() []Command {
	out := make([]Command, len(vocabulary))
	copy(out, vocabulary)
	return out
}

type parsed struct {
	word string
	kind kind
	args []string
}

// parse splits a "/word args..." message into a command word and arguments.
// Text without a leading "/" is conversation, not a command, and ok is false.
// A "@name" suffix must match bot (case-insensitive) when bot is set;
// otherwise the message was addressed to another bot and ok is false.
func parse(text, bot string) (p parsed, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return parsed{}, false
	}
	word := fields[0][1:]
	if i := strings.IndexByte(word, '@'); i >= 0 {
		target := word[i+1:]
		word = word[:i]
		bot = strings.TrimPrefix(strings.TrimSpace(bot), "@")
		if bot != "" && !strings.EqualFold(target, bot) {
			return parsed{}, false
		}
	}
	word = strings.ToLower(word)
	if word == "" {
		return parsed{}, false
	}
	p.word = word
	p.kind = byWord[word]
	p.args = fields[1:]
	return p, true
}
