package dsync

import "fmt"

// UnlockMessage is the sentinel published on a semaphore's channel after every release.
// It carries no permit count; receivers treat it as "re-check the counter".
const UnlockMessage = "0"

const channelPrefix = "dsync_semaphore__channel__"

// ChannelName returns the notification channel key of the named semaphore. The name is
// braced so a sharded store (Redis Cluster) hashes the channel to the counter key's slot.
func ChannelName(name string) string {
	return fmt.Sprintf("%s{%s}", channelPrefix, name)
}

// EntryName returns the process-local waiter registry key for the named semaphore.
func EntryName(id UUID, name string) string {
	return fmt.Sprintf("%s:%s", id.String(), name)
}
