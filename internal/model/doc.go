package model

// Package model defines domain data structures used across the app: download
// sessions, resolved catalog targets, cookie bundles, and status enums.
// Structures are designed for direct binding in templates and explicit state
// transitions.
