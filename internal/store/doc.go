// Package store owns the in-memory archive record map and its durable text
// form. Every mutation arms a debounce timer so bursts of provider updates
// are coalesced into a single write to the backend.
package store
