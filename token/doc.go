// Package token owns the current access token for a session manager
// instance and its durable persistence.
//
// [Store] holds the in-process token and mirrors every change into a
// [Vault] (the durable key-value slot that survives restarts) and into an
// optional header binding so the shared HTTP client always carries the
// current bearer credential. [RedisVault] is the production vault;
// [MemoryVault] backs tests and single-run tools.
package token
