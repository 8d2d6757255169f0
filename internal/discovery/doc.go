// SPDX-License-Identifier: MPL-2.0

// Package discovery classifies content containers and registers the mods they carry.
//
// Every container offered by a scanner is classified into exactly one Result kind:
// NoMods (a plain library), Success, PartialMods or Failure. Per-resource problems
// are collected as Diagnostics and never cross container boundaries; a duplicate
// mod id is the only fatal condition and surfaces as a *CollisionError.
//
// File organization:
//   - discoverer.go: Discoverer, registration and the Consider/WalkScanner/Finish flow
//   - classify.go: manifest reading and container classification
//   - result.go: the Result sum type and the Mod record
//   - errors.go: Error and CollisionError
//   - diagnostic.go: structured diagnostics returned to callers
//   - perfcounter.go: per-container timing for the discovery summary
package discovery
