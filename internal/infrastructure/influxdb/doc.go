// Package influxdb records device telemetry in InfluxDB v2.
//
// Every successful decode produces one point in the "ble_metrics"
// measurement, tagged with the device address, type and manufacturer, with
// one field per numeric metric. Writes are non-blocking and batched by the
// client library; failures arrive on the callback set with SetOnError.
//
// Long-term retention is configured on the bucket, not here.
package influxdb
