package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "homeconnect"

// Topics builds the topic hierarchy under one prefix:
//
//	{prefix}/appliance/{haId}/state     retained appliance snapshot
//	{prefix}/appliance/{haId}/command   inbound commands
//	{prefix}/appliance/{haId}/response  command results
//	{prefix}/bridge/status              retained online/offline, also the LWT
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders for prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// ApplianceState returns the retained state topic of haID.
//
// Example: homeconnect/appliance/SIEMENS-WM14T6H0-000000000001/state
func (t Topics) ApplianceState(haID string) string {
	return fmt.Sprintf("%s/appliance/%s/state", t.prefix(), haID)
}

// ApplianceCommand returns the command topic of haID.
func (t Topics) ApplianceCommand(haID string) string {
	return fmt.Sprintf("%s/appliance/%s/command", t.prefix(), haID)
}

// ApplianceResponse returns the topic command results for haID are published to.
func (t Topics) ApplianceResponse(haID string) string {
	return fmt.Sprintf("%s/appliance/%s/response", t.prefix(), haID)
}

// BridgeStatus returns the retained bridge health topic.
func (t Topics) BridgeStatus() string {
	return t.prefix() + "/bridge/status"
}

// AllApplianceCommands matches the command topic of every appliance.
func (t Topics) AllApplianceCommands() string {
	return t.prefix() + "/appliance/+/command"
}

// AllApplianceStates matches the state topic of every appliance.
func (t Topics) AllApplianceStates() string {
	return t.prefix() + "/appliance/+/state"
}

// AllTopics matches everything under the prefix.
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}

// ParseAppliance splits an appliance topic into haId and leaf
// ("state", "command" or "response").
func (t Topics) ParseAppliance(topic string) (haID, leaf string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/appliance/")
	if !found {
		return "", "", false
	}
	haID, leaf, found = strings.Cut(rest, "/")
	if !found || haID == "" || leaf == "" || strings.Contains(leaf, "/") {
		return "", "", false
	}
	return haID, leaf, true
}
