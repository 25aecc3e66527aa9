// Package kv implements persistence.KeyValueStore backends for the persisted
// session identity: a JSON file on disk and Redis.
package kv
