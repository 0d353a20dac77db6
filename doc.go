// Package dsync defines the contracts and shared helpers of distributed synchronization
// primitives whose state lives in a shared remote store instead of process memory.
//
// The counting semaphore in package semaphore is built from three collaborators declared here:
// a CounterStore holding the permit counters, a PubSub notification channel used purely as a
// wake-up signal, and the process-local waiter registry in package pubsub that shares one
// subscription among all goroutines waiting on the same semaphore name.
//
// Concrete backends live in subpackages: inmemory (single process), adapters/redis and
// adapters/cassandra.
//
// Permits held by a process that dies without releasing them are not reclaimed.
package dsync
