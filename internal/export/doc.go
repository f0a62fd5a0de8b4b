// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a snapshot of the current conversation to a
// Markdown or JSON file. Exports are one-way; nothing reads them back.
package export
