package cookies

// Package cookies manages stored authentication-cookie bundles: one optional
// bundle materialized from environment content at startup plus any number of
// user uploads. Selection probes every candidate in the same pass and ranks
// working bundles before stale ones, newest first within each group.
