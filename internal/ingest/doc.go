// Package ingest turns scanner messages into pipeline advertisements.
//
// Scanners publish one JSON document per advertisement on
// bosun/ble/advertisement/<scanner-id>:
//
//	{
//	  "address": "AA:BB:CC:DD:EE:FF",
//	  "name": "SmartSolar HQ2231",
//	  "rssi": -71,
//	  "manufacturer_data": "e102100...",
//	  "timestamp": "2026-03-01T12:00:00Z"
//	}
//
// manufacturer_data is hex and includes the 2-byte company identifier.
// Malformed messages are logged and dropped.
package ingest
