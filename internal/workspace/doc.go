package workspace

// Package workspace allocates isolated per-session download directories and
// tracks which of them belong to in-flight requests. The retention sweeper
// consults the active registry before deleting anything, so a slow request
// cannot lose its workspace to an age cutoff.
