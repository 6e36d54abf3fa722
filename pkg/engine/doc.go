// Package engine assembles the server: it loads the contract, starts
// the handler loader, and serves HTTP by translating wire requests into
// dispatch records. Diagnostics live under the /__mocksmith/ prefix.
package engine
