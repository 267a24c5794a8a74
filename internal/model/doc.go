package model

// Package model defines domain data structures used across the app: download
// jobs, subscription rules, feed entries, history records, and state enums.
// Structures are plain values with explicit state transitions; mutation is
// owned by the engine and scheduler, never by event subscribers.
