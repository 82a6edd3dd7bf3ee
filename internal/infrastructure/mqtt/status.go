package mqtt

import (
	"encoding/json"
	"time"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// serviceStatus is the retained payload on graylogic/system/telemetry/status.
type serviceStatus struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(clientID, status, reason string) []byte {
	b, err := json.Marshal(serviceStatus{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return []byte(`{"status":"` + status + `"}`)
	}
	return b
}

// announce publishes the service status, retained so late subscribers see it.
func (c *Client) announce(status, reason string) error {
	return c.Publish(Topics{}.Status(), statusPayload(c.clientID, status, reason), c.qos, true)
}
