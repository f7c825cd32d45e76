// Package core provides the business logic for the kids and gifts records service.
//
// This package holds all domain rules independent of any transport layer.
// It can be used by web handlers, the import CLI, or tests without
// modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Store: persistence behind the [Store] and [Tx] interfaces. Implementations
//     live in internal/store/postgres and internal/store/sqlite.
//   - Service: the entry point for every mutation and query on kids and gifts.
//   - Kid types: constructors registered in a [KidTypeRegistry] and selected
//     by a tag such as "BOY" or "GIRL".
//   - Import pipeline: [ImportStager], [ImportDispatcher] and [KidsImportWorker]
//     running on a bounded [Executor].
//
// # Locking
//
// Adding a gift takes an exclusive row lock on the owning kid with a bounded
// wait, counts the existing gifts and inserts the new one in the same
// transaction. A second request for the same kid waits for the first to
// commit; if the wait exceeds the store's lock timeout it fails with
// [ErrLockTimeout] and nothing is written. This keeps every kid at
// [MaxGiftsPerKid] gifts or fewer under concurrent requests.
//
// Updates use a version column instead of a lock. The stored version is
// compared and incremented in a single statement; a stale version fails
// with [ErrOptimisticConflict]. Deletes are idempotent: removing a record
// that does not exist succeeds.
//
// # Import Pipeline
//
// An uploaded file is copied into the staging directory before the request
// returns. A job is then submitted to the executor:
//
//  1. Client calls [Service.ImportKids] with the upload body
//  2. The body is staged to a uniquely named file
//  3. The dispatcher submits a job; a saturated executor rejects it with
//     [ErrExecutorSaturated] and the staged file is removed
//  4. A worker reads the file, skips the header line, and inserts rows in
//     batches inside one transaction
//  5. The staged file is deleted whether the import commits or rolls back
//
// # Error Handling
//
// Domain failures are sentinel errors matched with errors.Is. [MapError]
// turns any error into a user-facing message with a support code:
//
//   - REC001-REC004: Record errors (not found, locked, gift limit, conflict)
//   - VAL000: Validation errors
//   - IMP001-IMP003: Import errors (busy, shutting down, failed)
//   - DB001-DB007: Database errors (constraints, connections)
//   - FILE001-FILE004: File errors (size, format)
//   - REQ001-REQ003: Request errors (cancelled, timeout, bad body)
package core
