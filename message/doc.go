// Package message decodes the platform's live event payloads into typed records.
//
// Five record variants exist: PointData, DeviceState, GatewayState, ChannelState
// and AlertInfo. Each has an explicit field table mapping its normalized field
// names (the snake_case JSON tags on the record) to the wire names the platform
// sends, canonical spelling first:
//
//	device_id  <-  deviceID | deviceId | device_id
//
// Decoding accepts any listed wire spelling; Encode always writes the canonical
// one. Alias resolution happens only at these two boundaries.
//
// # Decoding Rules
//
//   - The payload must be a JSON object. Missing or null fields keep their zero value.
//   - A present field of the wrong JSON type fails with *errors.DecodeError naming
//     the subject and the field. No partial record is returned.
//   - Timestamps must be RFC 3339 strings with a "Z" designator; anything else fails
//     with *errors.TimestampFormatError.
//   - Integer state codes are kept verbatim next to a derived boolean (State and Online).
//   - AlertInfo keeps unrecognized fields in Attributes; other variants drop them.
//
// # Class Selection
//
// Decode picks the variant from the class segment of the subject
// (see package subject). When the subject carries no recognizable class, the
// payload's "type" field is consulted instead.
//
// Example:
//
//	rec, err := message.Decode("iot.p1.data.dev1.temp", payload)
//	if err != nil {
//	    return err
//	}
//	if pd, ok := rec.(message.PointData); ok {
//	    fmt.Println(pd.DeviceID, pd.Value)
//	}
package message
