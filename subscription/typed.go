package subscription

import (
	"context"
	"fmt"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/message"
	"github.com/c360/topstack/subject"
)

// typed adapts a per-record callback to Handler.
func typed[T message.Record](fn func(context.Context, T) error) Handler {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, rec message.Record) error {
		v, ok := rec.(T)
		if !ok {
			return &errors.DecodeError{Source: rec.Origin(),
				Err: fmt.Errorf("unexpected record %T: %w", rec, errors.ErrInvalidData)}
		}
		return fn(ctx, v)
	}
}

// SubscribePointData receives point readings. Empty ids match any value.
func (e *Engine) SubscribePointData(ctx context.Context, project, device, point string,
	fn func(context.Context, message.PointData) error) (Handle, error) {
	scope := subject.Scope{Project: project, Device: device, Point: point}
	return e.Subscribe(ctx, scope, subject.ClassPointData, typed(fn))
}

// SubscribeDeviceTypeData receives point readings for every device of a type.
func (e *Engine) SubscribeDeviceTypeData(ctx context.Context, project, deviceType, point string,
	fn func(context.Context, message.PointData) error) (Handle, error) {
	scope := subject.Scope{Project: project, DeviceType: deviceType, Point: point}
	return e.Subscribe(ctx, scope, subject.ClassDeviceTypeData, typed(fn))
}

// SubscribeDeviceState receives online/offline changes.
func (e *Engine) SubscribeDeviceState(ctx context.Context, project, device string,
	fn func(context.Context, message.DeviceState) error) (Handle, error) {
	scope := subject.Scope{Project: project, Device: device}
	return e.Subscribe(ctx, scope, subject.ClassDeviceState, typed(fn))
}

// SubscribeGatewayState receives gateway status for every gateway in project.
func (e *Engine) SubscribeGatewayState(ctx context.Context, project string,
	fn func(context.Context, message.GatewayState) error) (Handle, error) {
	return e.Subscribe(ctx, subject.Scope{Project: project}, subject.ClassGatewayState, typed(fn))
}

// SubscribeChannelState receives channel status for every channel in project.
func (e *Engine) SubscribeChannelState(ctx context.Context, project string,
	fn func(context.Context, message.ChannelState) error) (Handle, error) {
	return e.Subscribe(ctx, subject.Scope{Project: project}, subject.ClassChannelState, typed(fn))
}

// SubscribeAlertInfo receives every alert raised in project.
func (e *Engine) SubscribeAlertInfo(ctx context.Context, project string,
	fn func(context.Context, message.AlertInfo) error) (Handle, error) {
	return e.Subscribe(ctx, subject.Scope{Project: project}, subject.ClassAlertInfo, typed(fn))
}

// SubscribeDeviceAlertInfo receives alerts for one device. device must be a literal id.
func (e *Engine) SubscribeDeviceAlertInfo(ctx context.Context, project, device string,
	fn func(context.Context, message.AlertInfo) error) (Handle, error) {
	if device == "" || device == subject.Wildcard {
		return Handle{}, &errors.SubscribeError{Subject: string(subject.ClassDeviceAlertInfo),
			Err: fmt.Errorf("device id required: %w", errors.ErrInvalidRequest)}
	}
	scope := subject.Scope{Project: project, Device: device}
	return e.Subscribe(ctx, scope, subject.ClassDeviceAlertInfo, typed(fn))
}
