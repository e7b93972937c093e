// Package capability maps named capability sets to integer bitmasks.
//
// Cooking tools, allergies and food type are each a fixed vocabulary. Tools
// and allergies assign every label a distinct power of two so any subset
// packs into one integer; food type is single-select and callers replace
// the whole value.
//
// The vocabularies live in registry.cue and are loaded once by Default.
// Bit values are persisted by the server, so they never change for the
// lifetime of a deployment.
package capability
