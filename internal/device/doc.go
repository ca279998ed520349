// Package device provides the Device Store for Bosun Core.
//
// The Device Store owns the canonical per-device state: metadata, the last
// decoded value of every metric, device configuration (such as the
// encryption key a decoder needs) and decode failure bookkeeping.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Device Store                        │
//	│                                                             │
//	│  ┌──────────────────┐          ┌──────────────────┐         │
//	│  │      Store       │  Flush   │    Repository    │         │
//	│  │    (store.go)    │─────────▶│  (repository.go) │         │
//	│  │                  │  Load    │                  │         │
//	│  │ • index RWMutex  │◀─────────│ • SQLite devices │         │
//	│  │ • record RWMutex │          │ • JSON columns   │         │
//	│  └──────────────────┘          └──────────────────┘         │
//	└─────────────────────────────────────────────────────────────┘
//
// # Locking
//
// The index lock guards the address map and creation order only. Each
// record has its own RWMutex, so merges into different devices never
// contend and readers of one device always see a whole record.
//
// # Lifecycle
//
// Records are created on the first successful decode for an address or
// when configuration is supplied for an address not yet seen. The store
// never deletes records on its own.
//
// # Persistence
//
// Mutations are in-memory and mark the record dirty. Flush writes dirty
// records to the Repository; callers run it off the ingest path.
//
// # Usage
//
//	store := device.NewStore(device.Options{StaleAfter: 10 * time.Minute})
//	store.SetRepository(device.NewSQLiteRepository(db.DB))
//	if err := store.Load(ctx); err != nil {
//	    return err
//	}
//
//	store.Upsert("AA:BB:CC:DD:EE:FF", device.Metadata{ManufacturerID: 0x02E1})
//	store.MergeMetrics("AA:BB:CC:DD:EE:FF", metrics, time.Now())
package device
