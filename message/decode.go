package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/subject"
)

// Decode converts one bus message into its record. The class comes from the
// subject's class segment, or from the payload's "type" field when the subject
// has none.
func Decode(subj string, payload []byte) (Record, error) {
	class, err := classOf(subj, payload)
	if err != nil {
		return nil, err
	}
	return DecodeAs(class, subj, payload)
}

// DecodeAs decodes payload as the given class, ignoring any discriminator.
func DecodeAs(class subject.Class, subj string, payload []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch class {
	case subject.ClassPointData, subject.ClassDeviceTypeData:
		rec, err = DecodePointData(subj, payload)
	case subject.ClassDeviceState:
		rec, err = DecodeDeviceState(subj, payload)
	case subject.ClassGatewayState:
		rec, err = DecodeGatewayState(subj, payload)
	case subject.ClassChannelState:
		rec, err = DecodeChannelState(subj, payload)
	case subject.ClassAlertInfo, subject.ClassDeviceAlertInfo:
		rec, err = DecodeAlertInfo(subj, payload)
	default:
		return nil, &errors.DecodeError{Source: subj, Err: fmt.Errorf("unknown message class %q: %w", class, errors.ErrInvalidData)}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func classOf(subj string, payload []byte) (subject.Class, error) {
	if tokens := strings.Split(subj, "."); len(tokens) >= 3 {
		if class, ok := subject.ClassFromSegment(tokens[2]); ok {
			return class, nil
		}
	}

	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &disc); err != nil {
		return "", &errors.DecodeError{Source: subj, Err: err}
	}
	if disc.Type == "" {
		return "", &errors.DecodeError{Source: subj, Field: "type",
			Err: fmt.Errorf("no class segment in subject and no type discriminator: %w", errors.ErrInvalidData)}
	}
	class, err := subject.ParseClass(disc.Type)
	if err != nil {
		return "", &errors.DecodeError{Source: subj, Field: "type",
			Err: fmt.Errorf("unknown type %q: %w", disc.Type, errors.ErrInvalidData)}
	}
	return class, nil
}

// DecodePointData decodes a point reading.
func DecodePointData(subj string, payload []byte) (PointData, error) {
	r, err := newReader(subj, pointDataFields, payload)
	if err != nil {
		return PointData{}, err
	}
	p := PointData{Subject: subj}
	r.str("device_id", &p.DeviceID)
	r.str("point_id", &p.PointID)
	r.value("value", &p.Value)
	r.integer("quality", &p.Quality)
	r.time("timestamp", &p.Timestamp)
	r.integer("status", &p.Status)
	r.str("device_type_id", &p.DeviceTypeID)
	r.str("project_id", &p.ProjectID)
	r.str("gateway_id", &p.GatewayID)
	r.boolean("not_save", &p.NotSave)
	if r.err != nil {
		return PointData{}, r.err
	}
	return p, nil
}

// DecodeDeviceState decodes a device online/offline event. Online is State == 1.
func DecodeDeviceState(subj string, payload []byte) (DeviceState, error) {
	r, err := newReader(subj, deviceStateFields, payload)
	if err != nil {
		return DeviceState{}, err
	}
	d := DeviceState{Subject: subj}
	r.str("project_id", &d.ProjectID)
	r.str("gateway_id", &d.GatewayID)
	r.str("device_id", &d.DeviceID)
	r.integer("state", &d.State)
	r.time("timestamp", &d.Timestamp)
	if r.err != nil {
		return DeviceState{}, r.err
	}
	d.Online = d.State == 1
	return d, nil
}

// DecodeGatewayState decodes a gateway online/offline event. Online is State == 1.
func DecodeGatewayState(subj string, payload []byte) (GatewayState, error) {
	r, err := newReader(subj, gatewayStateFields, payload)
	if err != nil {
		return GatewayState{}, err
	}
	g := GatewayState{Subject: subj}
	r.str("sn", &g.SN)
	r.str("name", &g.Name)
	r.str("project_id", &g.ProjectID)
	r.str("gateway_id", &g.GatewayID)
	r.integer("state", &g.State)
	r.time("timestamp", &g.Timestamp)
	if r.err != nil {
		return GatewayState{}, r.err
	}
	g.Online = g.State == 1
	return g, nil
}

// DecodeChannelState decodes a channel state event.
func DecodeChannelState(subj string, payload []byte) (ChannelState, error) {
	r, err := newReader(subj, channelStateFields, payload)
	if err != nil {
		return ChannelState{}, err
	}
	c := ChannelState{Subject: subj}
	r.str("project_id", &c.ProjectID)
	r.str("gateway_id", &c.GatewayID)
	r.str("channel_id", &c.ChannelID)
	r.boolean("running", &c.Running)
	r.boolean("connected", &c.Connected)
	r.time("timestamp", &c.Timestamp)
	r.str("gateway_name", &c.GatewayName)
	r.str("channel_name", &c.ChannelName)
	if r.err != nil {
		return ChannelState{}, r.err
	}
	return c, nil
}

// DecodeAlertInfo decodes an alert. Unknown fields land in Attributes.
func DecodeAlertInfo(subj string, payload []byte) (AlertInfo, error) {
	r, err := newReader(subj, alertInfoFields, payload)
	if err != nil {
		return AlertInfo{}, err
	}
	a := AlertInfo{Subject: subj}
	r.str("alert_id", &a.AlertID)
	r.str("status", &a.Status)
	r.time("created_at", &a.CreatedAt)
	r.str("title", &a.Title)
	r.str("content", &a.Content)
	r.str("project_id", &a.ProjectID)
	r.str("device_id", &a.DeviceID)
	r.str("alert_type_id", &a.AlertTypeID)
	r.str("alert_level_id", &a.AlertLevelID)
	r.str("rule_name", &a.RuleName)
	r.str("alert_type_name", &a.AlertTypeName)
	r.str("alert_type_code", &a.AlertTypeCode)
	r.str("alert_level_code", &a.AlertLevelCode)
	r.str("alert_level_color", &a.AlertLevelColor)
	r.str("alert_level_name", &a.AlertLevelName)
	r.str("device_name", &a.DeviceName)
	r.str("point_name", &a.PointName)
	r.str("device_type_id", &a.DeviceTypeID)
	r.str("device_group_id", &a.DeviceGroupID)
	r.object("device_attr", &a.DeviceAttr)

	var bag map[string]json.RawMessage
	if key, v, ok := r.lookup("attributes"); ok {
		if err := json.Unmarshal(v, &bag); err != nil {
			r.fail(key, fmt.Errorf("want object: %w", errors.ErrInvalidData))
		}
	}
	if r.err != nil {
		return AlertInfo{}, r.err
	}
	for k, v := range r.extras() {
		if bag == nil {
			bag = make(map[string]json.RawMessage)
		}
		bag[k] = v
	}
	a.Attributes = bag
	return a, nil
}

// Encode renders a record in its canonical wire form.
func Encode(rec Record) ([]byte, error) {
	switch v := rec.(type) {
	case PointData:
		return v.encode()
	case *PointData:
		return v.encode()
	case DeviceState:
		return v.encode()
	case *DeviceState:
		return v.encode()
	case GatewayState:
		return v.encode()
	case *GatewayState:
		return v.encode()
	case ChannelState:
		return v.encode()
	case *ChannelState:
		return v.encode()
	case AlertInfo:
		return v.encode()
	case *AlertInfo:
		return v.encode()
	default:
		return nil, fmt.Errorf("message: cannot encode %T: %w", rec, errors.ErrInvalidData)
	}
}

func (p PointData) encode() ([]byte, error) {
	w := newWriter(pointDataFields)
	w.set("device_id", p.DeviceID)
	w.set("point_id", p.PointID)
	w.set("value", p.Value)
	w.set("quality", p.Quality)
	w.time("timestamp", p.Timestamp)
	w.set("status", p.Status)
	w.set("device_type_id", p.DeviceTypeID)
	w.set("project_id", p.ProjectID)
	w.set("gateway_id", p.GatewayID)
	w.set("not_save", p.NotSave)
	return w.bytes()
}

func (d DeviceState) encode() ([]byte, error) {
	w := newWriter(deviceStateFields)
	w.set("project_id", d.ProjectID)
	w.set("gateway_id", d.GatewayID)
	w.set("device_id", d.DeviceID)
	w.set("state", d.State)
	w.time("timestamp", d.Timestamp)
	return w.bytes()
}

func (g GatewayState) encode() ([]byte, error) {
	w := newWriter(gatewayStateFields)
	w.set("sn", g.SN)
	w.set("name", g.Name)
	w.set("project_id", g.ProjectID)
	w.set("gateway_id", g.GatewayID)
	w.set("state", g.State)
	w.time("timestamp", g.Timestamp)
	return w.bytes()
}

func (c ChannelState) encode() ([]byte, error) {
	w := newWriter(channelStateFields)
	w.set("project_id", c.ProjectID)
	w.set("gateway_id", c.GatewayID)
	w.set("channel_id", c.ChannelID)
	w.set("running", c.Running)
	w.set("connected", c.Connected)
	w.time("timestamp", c.Timestamp)
	w.set("gateway_name", c.GatewayName)
	w.set("channel_name", c.ChannelName)
	return w.bytes()
}

func (a AlertInfo) encode() ([]byte, error) {
	w := newWriter(alertInfoFields)
	for k, v := range a.Attributes {
		w.out[k] = v
	}
	w.set("alert_id", a.AlertID)
	w.set("status", a.Status)
	w.time("created_at", a.CreatedAt)
	w.set("title", a.Title)
	w.set("content", a.Content)
	w.set("project_id", a.ProjectID)
	w.set("device_id", a.DeviceID)
	w.set("alert_type_id", a.AlertTypeID)
	w.set("alert_level_id", a.AlertLevelID)
	w.set("rule_name", a.RuleName)
	w.set("alert_type_name", a.AlertTypeName)
	w.set("alert_type_code", a.AlertTypeCode)
	w.set("alert_level_code", a.AlertLevelCode)
	w.set("alert_level_color", a.AlertLevelColor)
	w.set("alert_level_name", a.AlertLevelName)
	w.set("device_name", a.DeviceName)
	w.set("point_name", a.PointName)
	w.set("device_type_id", a.DeviceTypeID)
	w.set("device_group_id", a.DeviceGroupID)
	if a.DeviceAttr != nil {
		w.set("device_attr", a.DeviceAttr)
	}
	return w.bytes()
}

// UnmarshalJSON accepts both the wire spellings and the normalized names, so
// records can sit directly inside API response types.
func (p *PointData) UnmarshalJSON(data []byte) error {
	v, err := DecodePointData("", data)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// UnmarshalJSON accepts wire and normalized names
func (d *DeviceState) UnmarshalJSON(data []byte) error {
	v, err := DecodeDeviceState("", data)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalJSON accepts wire and normalized names
func (g *GatewayState) UnmarshalJSON(data []byte) error {
	v, err := DecodeGatewayState("", data)
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// UnmarshalJSON accepts wire and normalized names
func (c *ChannelState) UnmarshalJSON(data []byte) error {
	v, err := DecodeChannelState("", data)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// UnmarshalJSON accepts wire and normalized names
func (a *AlertInfo) UnmarshalJSON(data []byte) error {
	v, err := DecodeAlertInfo("", data)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
