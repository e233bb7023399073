package msgchain

// Storage Backend Comparison
//
// This package provides three storage backends for message chains:
//
// 1. In-memory store (mem_store.go)
//    - Size-limited map, nothing persisted
//    - Models an untrusted, quota-bound key-value store
//    - Best for: tests, ephemeral sessions, quota experiments
//
// 2. POSIX File Storage (file_store.go)
//    - Append-only binary files, one log per thread
//    - Canonical entry encoding on disk, fsync on every append
//    - Best for: production use, minimal dependencies
//
// 3. SQLite Storage (sqlite_store.go)
//    - SQLite database with WAL mode
//    - ACID transactions, SQL queries for flexible access
//    - Best for: applications already using SQLite
//
// Usage Example:
//
//   store, err := msgchain.OpenFileStore("/var/lib/msgchain")
//   if err != nil {
//       log.Fatal(err)
//   }
//
//   kp, _ := msgchain.GenerateKeypair()
//   chain := msgchain.New(store)
//
//   // Append builds the next entry: it links to the current tail by
//   // hash, continues the sequence, and signs the message digest.
//   entry, _ := chain.Append("chat 1", []byte("hello"), kp)
//
//   // Validate re-verifies the whole stored chain from scratch,
//   // trusting nothing about the storage medium.
//   if err := chain.Validate("chat 1"); err != nil {
//       var verr *msgchain.ValidationError
//       if errors.As(err, &verr) {
//           log.Printf("chain broken at entry %d: %v", verr.Index, verr.Reason)
//       }
//   }
//
//   _ = entry
//
// Entries received from another party go through the guarded path,
// which checks signature, sequence and linkage against the stored tail
// before appending:
//
//   hash, err := chain.AppendSigned("chat 1", foreignEntry)
//
// The same guarded path backs ImportThread and the HTTP sync server,
// so no route exists for an unverified entry to enter a store.
