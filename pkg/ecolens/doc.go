// Package ecolens implements the slot allocator at the core of the EcoLens
// backend: each slot (uploads, product1, product2) holds at most one front
// and one back image of a product label, and every accepted upload is
// assigned to whichever role is free, evicting the older image when both
// roles are occupied.
//
// Storage is pluggable through the SlotStore interface; memory, filesystem
// and S3 implementations are provided under subpackages. Allocator decisions
// for one slot are serialized with a per-slot mutex, so the one-front/one-back
// invariant holds under concurrent uploads.
package ecolens
