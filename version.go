package weft

// Version is the release of this module, printed by `weft version`.
const Version = "0.3.0"
