package types

// Version is the canonical project version.
// The CLI, the state file format, and the cycle event payload share this
// version per the lockstep versioning policy.
const Version = "0.3.0"
