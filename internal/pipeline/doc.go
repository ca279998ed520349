// Package pipeline is the composition root of the decode, aggregate,
// evaluate and broadcast path.
//
// One advertisement flows through it like this:
//
//	payload ──▶ decoder.Registry ──▶ device.Store (merge)
//	                                      │
//	                                      ▼
//	        publisher ◀── rules.Engine ◀── transform (snapshot)
//	                          │
//	                          ▼
//	                   action queue ──▶ action.Sink (Run)
//
// Decoding and merging run on the caller's goroutine, so advertisements for
// different devices proceed in parallel. Projection, rule evaluation and
// publishing are serialized so every patch is computed from one snapshot
// pair and patches reach subscribers in order.
//
// Actions are queued and delivered by Run. A full queue drops the action
// with a warning rather than stalling ingestion.
package pipeline
