package redis

import (
	"fmt"
	"strings"
)

// Keyspace builds every key under one prefix so several deployments can
// share an instance.
type Keyspace string

func (k Keyspace) conversation(scope string, tgID int64) string {
	return fmt.Sprintf("%s:conv:%s:%d", k, scope, tgID)
}

func (k Keyspace) lock(name string) string {
	return string(k) + ":lock:" + name
}

func (k Keyspace) rate(key string) string {
	return string(k) + ":rl:" + key
}

// UserCommandKey scopes a limit to one user of one bot. The command is
// lowercased so /PIX and /pix share a window.
func UserCommandKey(scope string, userID int64, command string) string {
	return fmt.Sprintf("%s:%d:%s", scope, userID, strings.ToLower(command))
}
