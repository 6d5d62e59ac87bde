// Package core provides the application service around the ingestion
// pipeline.
//
// The pipeline in package ingest turns one upload into canonical file
// records and knows nothing about users, databases or HTTP. This package
// adds what a running service needs around it, independent of any transport.
// It is used by the web handlers and can be driven from tests without
// modification.
//
// # Ingest Flow
//
//  1. [Service.Ingest] takes an upload slot from the [UploadLimiter]
//  2. The owner's remaining quota is read from the store
//  3. The pipeline runs under the configured upload timeout
//  4. The outcome is saved with the client IP and User-Agent from context
//  5. Metrics are recorded; files of unsaved results are released
//
// Owners, IP addresses and User-Agents travel in the context, see
// [ContextWithOwner], [ContextWithIPAddress] and [ContextWithUserAgent].
//
// # Concurrency
//
// The limiter caps concurrent ingest calls. Calls wait up to the configured
// time for a slot and then fail with [ErrTooManyUploads]. When a quota is
// configured, calls of the same owner run one at a time so that usage is
// read and updated consistently.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: upload content errors (size, package, shapefile)
//   - UPL001-UPL005: processing errors (storage, busy, not found, timeout)
//   - QUOTA001: quota lookup errors
//   - DB001-DB003: database errors
//
// # Maintenance
//
// [Service.StartScratchSweeper] removes scratch leftovers of crashed
// processes on a ticker.
package core
