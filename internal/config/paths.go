package config

import "path/filepath"

// Every directory the agent owns lives under home (~/.inboxagent or INBOXAGENT_HOME).

// Home returns the root directory (ResolveHome()).
func Home() string {
	return ResolveHome()
}

// DataDir returns home/data.
func DataDir() string {
	return filepath.Join(Home(), "data")
}

// ReplyLogPath returns the JSONL reply history, home/data/replies.jsonl.
func ReplyLogPath() string {
	return filepath.Join(DataDir(), "replies.jsonl")
}
