// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides local request accounting for shellmind.
//
// Every completed request is recorded as one row in a SQLite database under
// ~/.shellmind/usage.db: model, transport, attempt count, duration and
// outcome. Recording is best-effort and never blocks or fails the request
// path. Nothing leaves the machine.
package telemetry
