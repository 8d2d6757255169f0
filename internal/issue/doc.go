// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors with remediation hints and a catalog of
// Markdown explanations for the failure classes felis reports.
package issue
