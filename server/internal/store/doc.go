// Package store holds the process-lifetime history of accepted vital-sign
// readings. It is an append-only, insertion-ordered log guarded by a single
// RWMutex; nothing is persisted and nothing is ever removed.
package store
