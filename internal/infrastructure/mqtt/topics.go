package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the telemetry core.
//
// Sensors publish under graylogic/sensor, aggregate requests and responses
// travel under graylogic/request and graylogic/response, and the core
// publishes its own state under graylogic/core.
const (
	// TopicPrefix is the root of every topic.
	TopicPrefix = "graylogic"

	// TopicPrefixCore is the base for topics published by the core.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for the telemetry MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.SensorTemperature("kitchen", "t1")
//	// Returns: "graylogic/sensor/kitchen/t1/temperature"
type Topics struct{}

// SensorTemperature returns the topic a sensor publishes readings on.
//
// Example: graylogic/sensor/kitchen/t1/temperature
func (Topics) SensorTemperature(groupID, deviceID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/temperature", TopicPrefix, groupID, deviceID)
}

// TemperatureRequest returns the topic for aggregate requests on a group.
//
// Example: graylogic/request/temperatures/kitchen
func (Topics) TemperatureRequest(groupID string) string {
	return fmt.Sprintf("%s/request/temperatures/%s", TopicPrefix, groupID)
}

// TemperatureResponse returns the topic aggregate responses are published on.
//
// Example: graylogic/response/temperatures/kitchen
func (Topics) TemperatureResponse(groupID string) string {
	return fmt.Sprintf("%s/response/temperatures/%s", TopicPrefix, groupID)
}

// GroupTemperatures returns the retained topic holding a group's latest
// aggregate.
//
// Example: graylogic/core/group/kitchen/temperatures
func (Topics) GroupTemperatures(groupID string) string {
	return fmt.Sprintf("%s/group/%s/temperatures", TopicPrefixCore, groupID)
}

// Status returns the retained online/offline topic of this service.
//
// Example: graylogic/system/telemetry/status
func (Topics) Status() string {
	return TopicPrefixSystem + "/telemetry/status"
}

// AllSensorTemperatures matches every sensor reading.
//
// Pattern: graylogic/sensor/+/+/temperature
func (Topics) AllSensorTemperatures() string {
	return TopicPrefix + "/sensor/+/+/temperature"
}

// AllTemperatureRequests matches aggregate requests for every group.
//
// Pattern: graylogic/request/temperatures/+
func (Topics) AllTemperatureRequests() string {
	return TopicPrefix + "/request/temperatures/+"
}

// ParseSensorTopic extracts group and device from a sensor reading topic.
func ParseSensorTopic(topic string) (groupID, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[1] != "sensor" || parts[4] != "temperature" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// ParseTemperatureRequestTopic extracts the group from an aggregate request topic.
func ParseTemperatureRequestTopic(topic string) (groupID string, ok bool) {
	groupID, found := strings.CutPrefix(topic, TopicPrefix+"/request/temperatures/")
	if !found || groupID == "" || strings.Contains(groupID, "/") {
		return "", false
	}
	return groupID, true
}
