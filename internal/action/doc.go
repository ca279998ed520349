// Package action delivers rule actions to the outside world.
//
// The rule engine only produces an ordered list of actions. A Sink takes
// each one somewhere: the log, an MQTT topic, the SQLite events table, or a
// Redis list drained by an external push notifier. Sinks are composed with
// Multi and restricted to particular action types with ForTypes:
//
//	sink := action.Multi(
//	    action.NewLogSink(log),
//	    action.ForTypes(action.NewMQTTSink(mqttClient), rules.ActionPublish, rules.ActionNotify),
//	    action.ForTypes(action.NewEventRecorder(db.DB), rules.ActionRecord),
//	    action.ForTypes(action.NewRedisSink(rdb, "bosun:notifications"), rules.ActionNotify),
//	)
package action
