// Package mqttbridge mirrors appliance state to MQTT and accepts commands.
//
// Topics, under the configured prefix:
//
//	{prefix}/appliance/{haId}/state     retained snapshot, republished on change
//	{prefix}/appliance/{haId}/command   {"id","action","key","value","unit","options"}
//	{prefix}/appliance/{haId}/response  {"id","success","error","code"}
//	{prefix}/bridge/status              retained health report, LWT offline
//
// Actions: set_property, select_program, start_program, stop_program,
// execute_command, run, pause, power.
//
// State publishing runs on the bridge's own goroutine. Notifications for
// the same appliance that arrive while a publish is pending are coalesced
// into one message carrying the latest snapshot.
package mqttbridge
