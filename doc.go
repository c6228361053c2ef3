// Package topstack is a Go client for the TopStack IoT platform.
//
// The platform exposes two surfaces and the module has one half for each:
//
//   - An HTTP API answering every call with a {code, message, data} envelope.
//     package client signs and sends calls; package api declares the endpoints.
//   - A live event stream of point data, device, gateway and channel state and
//     alerts, published on a subject-based message bus. package subscription
//     subscribes to it over NATS (natsclient) or MQTT (mqttbus) and hands out
//     typed records.
//
// # Architecture
//
//	┌───────────────────────────┐        ┌───────────────────────────┐
//	│      api (catalog)        │        │   subscription.Engine     │
//	│  FindLast, QueryDevices,  │        │  typed subscribers, one   │
//	│  AlertLevels, ...         │        │  ordered queue per handle │
//	└────────────┬──────────────┘        └────────────┬──────────────┘
//	             ↓ Endpoint.Do                        ↓ subject patterns
//	┌───────────────────────────┐        ┌───────────────────────────┐
//	│      client.Client        │        │  message (decoder)        │
//	│  auth headers, timeout,   │        │  subject (scheme)         │
//	│  typed failures           │        └────────────┬──────────────┘
//	└────────────┬──────────────┘                     ↓ bus.Subscriber
//	             ↓                       ┌───────────────────────────┐
//	┌───────────────────────────┐        │  natsclient  |  mqttbus   │
//	│  envelope (codec, schema) │        │  reconnect, circuit       │
//	└───────────────────────────┘        │  breaker, health          │
//	                                     └───────────────────────────┘
//
// # Errors
//
// Every failure is classified (package errors): transient failures such as
// connection loss, timeouts and 5xx codes may be retried with pkg/retry;
// invalid input, platform rejections and malformed data may not. The client
// itself never retries.
//
// # Subjects
//
// Events travel on {root}.{project}.{class}.{scope...}, root "iot" by default:
//
//	iot.project_001.data.device_001.point_001
//	iot.project_001.typedata.chiller.point_001
//	iot.project_001.device_state.device_001
//	iot.project_001.gateway_state.gateway_001
//	iot.project_001.channel_state.channel_001
//	iot.project_001.alert.device_001
//
// Any scope level left empty becomes a single-token wildcard.
//
// # Packages
//
// Request path:
//   - envelope: response envelope codec, Page, JSON Schema checks
//   - client: Transport Client, Endpoint descriptors
//   - api: endpoint catalog and DataV page links
//
// Event path:
//   - subject: subject scheme and wildcard matching
//   - message: payload decoding into typed records
//   - subscription: subscription lifecycle and dispatch
//   - bus, natsclient, mqttbus: broker connections
//
// Support:
//   - errors, config, metric, health, pkg/retry, pkg/worker, pkg/cache,
//     pkg/timestamp, pkg/security, pkg/tlsutil, testutil
//
// The topstack command (cmd/topstack) wraps all of it for shell use.
package topstack
