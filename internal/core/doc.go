// Package core provides the business logic for the monthly expense load.
//
// This package is independent of the spreadsheet format and of the target
// database. The CLI and the HTTP trigger both drive it through [Pipeline].
//
// # Flow
//
// A run is a single pass with two I/O calls in strict order:
//
//  1. [Reader.Read] loads every row of the first sheet into memory
//  2. [Transform] stamps each row with the [ReportingPeriod] and normalizes
//     the currency columns with [NormalizeCurrency]
//  3. [Sink.UpsertBatch] submits the whole batch; rows whose conflict-key
//     tuple already exists are skipped by the backend
//
// An empty sheet stops the run before step 3 without an error.
//
// # Error Handling
//
// Row-level problems never fail a run: bad amounts become 0 and empty
// categorical cells become NULL. Only file-level and backend failures are
// returned, wrapped around one of the sentinels below so callers can use
// errors.Is:
//
//   - [ErrRead]: the source file is missing, too large or not tabular
//   - [ErrCommunication]: the database is unreachable, rejected the
//     credentials or the load timed out
//   - [ErrConstraint]: the target table has no unique index matching
//     the conflict key
//   - [ErrInvalidPeriod]: the configured year or month is out of range
//   - [ErrBusy]: every load slot of the HTTP trigger stayed taken
//
// [MapError] turns any of them into a [UserMessage] with a support code.
package core
