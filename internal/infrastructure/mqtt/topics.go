package mqtt

import "fmt"

const (
	// TopicPrefix is the root of every Bosun topic.
	TopicPrefix = "bosun"

	// TopicPrefixBLE carries scanner traffic.
	TopicPrefixBLE = TopicPrefix + "/ble"

	// TopicPrefixCore carries traffic originated by Bosun Core.
	TopicPrefixCore = TopicPrefix + "/core"

	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics builds Bosun MQTT topics.
//
//	topic := mqtt.Topics{}.CoreAction("notify", "anchor-watch")
//	// "bosun/core/action/notify/anchor-watch"
type Topics struct{}

// BLEAdvertisement is the topic a scanner publishes advertisements on.
//
// Example: bosun/ble/advertisement/saloon-scanner
func (Topics) BLEAdvertisement(scannerID string) string {
	return fmt.Sprintf("%s/advertisement/%s", TopicPrefixBLE, scannerID)
}

// AllBLEAdvertisements matches advertisements from every scanner.
//
// Pattern: bosun/ble/advertisement/+
func (Topics) AllBLEAdvertisements() string {
	return fmt.Sprintf("%s/advertisement/+", TopicPrefixBLE)
}

// CoreAction is the topic a rule action is published on. An empty target
// yields bosun/core/action/<type>.
//
// Example: bosun/core/action/alarm/anchor
func (Topics) CoreAction(actionType, target string) string {
	if target == "" {
		return fmt.Sprintf("%s/action/%s", TopicPrefixCore, actionType)
	}
	return fmt.Sprintf("%s/action/%s/%s", TopicPrefixCore, actionType, target)
}

// AllCoreActions matches every action topic regardless of depth.
//
// Pattern: bosun/core/action/#
func (Topics) AllCoreActions() string {
	return fmt.Sprintf("%s/action/#", TopicPrefixCore)
}

// SystemStatus is the retained online/offline topic.
//
// Example: bosun/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
