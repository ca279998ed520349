// Package mqtt provides MQTT client connectivity for Bosun Core.
//
// MQTT is the bus between Bosun and the BLE scanners on board: scanners
// publish raw advertisements, Bosun subscribes to them and publishes rule
// actions back out for relays, sounders and displays.
//
//	BLE scanners → MQTT broker → Bosun Core → MQTT broker → actuators
//
// The client auto-reconnects with backoff, restores subscriptions after a
// reconnect and maintains a retained online/offline status with a Last Will.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllBLEAdvertisements(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
package mqtt
