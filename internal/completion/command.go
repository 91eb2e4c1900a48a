package completion

// Command is an action requested through the completion line rather than a
// word to insert. Commands are offered to the shell as reserved tokens so they
// stay discoverable via completion.
type Command int

const (
	CommandNone Command = iota
	// CommandClearCache drops the cached task list for the current
	// directory and repopulates it.
	CommandClearCache
)

const (
	// ClearCacheToken is the word that selects CommandClearCache.
	ClearCacheToken = "_cache_clear"
	// CacheClearedNotice is printed after CommandClearCache runs.
	CacheClearedNotice = "_CACHE_CLEARED"
)

var commandTokens = map[Command]string{
	CommandClearCache: ClearCacheToken,
}

// Token returns the reserved word for c, or "" for CommandNone.
func (c Command) Token() string {
	return commandTokens[c]
}

func (c Command) String() string {
	switch c {
	case CommandClearCache:
		return "clear-cache"
	default:
		return "none"
	}
}

// ParseCommand reports whether word is a command token.
func ParseCommand(word string) (Command, bool) {
	for cmd, token := range commandTokens {
		if token == word {
			return cmd, true
		}
	}
	return CommandNone, false
}
