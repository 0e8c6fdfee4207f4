package types

// Version is the canonical project version.
// The CLI, capture file format and notify event payloads share this version.
const Version = "0.4.0"

// ContractVersion is stamped into capture entries and notify events.
// Lockstep with Version.
const ContractVersion = Version
