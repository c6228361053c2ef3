// Package subject builds, parses and matches the hierarchical bus subjects the
// platform publishes its live event stream on.
//
// Subjects are dot-separated tokens:
//
//	{root}.{project}.data.{device}.{point}           point data
//	{root}.{project}.typedata.{deviceType}.{point}   point data scoped by device type
//	{root}.{project}.device_state.{device}
//	{root}.{project}.gateway_state.{gateway}
//	{root}.{project}.channel_state.{channel}
//	{root}.{project}.alert.{device}
//
// The wildcard token "*" matches exactly one token. There is no multi-level
// wildcard: a caller who wants every project and every device puts "*" at each
// level.
package subject

import (
	"fmt"
	"strings"

	"github.com/c360/topstack/errors"
)

const (
	// Wildcard matches any single token at its position.
	Wildcard = "*"

	// DefaultRoot is the first token of every platform subject.
	DefaultRoot = "iot"

	separator = "."
)

// Class identifies the kind of event a subject carries.
type Class string

// Message classes
const (
	ClassPointData       Class = "point-data"
	ClassDeviceTypeData  Class = "device-type-data"
	ClassDeviceState     Class = "device-state"
	ClassGatewayState    Class = "gateway-state"
	ClassChannelState    Class = "channel-state"
	ClassAlertInfo       Class = "alert-info"
	ClassDeviceAlertInfo Class = "device-alert-info"
)

// Classes lists every class in a stable order.
var Classes = []Class{
	ClassPointData,
	ClassDeviceTypeData,
	ClassDeviceState,
	ClassGatewayState,
	ClassChannelState,
	ClassAlertInfo,
	ClassDeviceAlertInfo,
}

// layout describes the class segment and the scope levels following it.
type layout struct {
	segment string
	levels  []level
}

type level int

const (
	levelDevice level = iota
	levelDeviceType
	levelPoint
	levelGateway
	levelChannel
)

func (l level) String() string {
	switch l {
	case levelDevice:
		return "device"
	case levelDeviceType:
		return "device type"
	case levelPoint:
		return "point"
	case levelGateway:
		return "gateway"
	case levelChannel:
		return "channel"
	default:
		return "unknown"
	}
}

var layouts = map[Class]layout{
	ClassPointData:       {segment: "data", levels: []level{levelDevice, levelPoint}},
	ClassDeviceTypeData:  {segment: "typedata", levels: []level{levelDeviceType, levelPoint}},
	ClassDeviceState:     {segment: "device_state", levels: []level{levelDevice}},
	ClassGatewayState:    {segment: "gateway_state", levels: []level{levelGateway}},
	ClassChannelState:    {segment: "channel_state", levels: []level{levelChannel}},
	ClassAlertInfo:       {segment: "alert", levels: []level{levelDevice}},
	ClassDeviceAlertInfo: {segment: "alert", levels: []level{levelDevice}},
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	_, ok := layouts[c]
	return ok
}

// Segment returns the subject token that carries the class.
func (c Class) Segment() string {
	return layouts[c].segment
}

// String returns the class name
func (c Class) String() string {
	return string(c)
}

// ClassFromSegment resolves the class token of a concrete subject. Both alert
// classes share one segment and resolve to ClassAlertInfo.
func ClassFromSegment(segment string) (Class, bool) {
	switch segment {
	case "data":
		return ClassPointData, true
	case "typedata":
		return ClassDeviceTypeData, true
	case "device_state":
		return ClassDeviceState, true
	case "gateway_state":
		return ClassGatewayState, true
	case "channel_state":
		return ClassChannelState, true
	case "alert":
		return ClassAlertInfo, true
	default:
		return "", false
	}
}

// ParseClass accepts a class name ("device-state") or its subject segment
// ("device_state").
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	if seg, ok := ClassFromSegment(string(c)); ok {
		return seg, nil
	}
	return "", fmt.Errorf("unknown message class %q: %w", s, errors.ErrInvalidRequest)
}

// Scope selects which part of the event stream a subscription covers. An empty
// field is the same as Wildcard. Fields that do not apply to a class are ignored.
type Scope struct {
	Project    string
	Device     string
	DeviceType string
	Point      string
	Gateway    string
	Channel    string
}

func (s Scope) get(l level) string {
	switch l {
	case levelDevice:
		return s.Device
	case levelDeviceType:
		return s.DeviceType
	case levelPoint:
		return s.Point
	case levelGateway:
		return s.Gateway
	case levelChannel:
		return s.Channel
	default:
		return ""
	}
}

func (s *Scope) set(l level, v string) {
	switch l {
	case levelDevice:
		s.Device = v
	case levelDeviceType:
		s.DeviceType = v
	case levelPoint:
		s.Point = v
	case levelGateway:
		s.Gateway = v
	case levelChannel:
		s.Channel = v
	}
}

// Pattern is a fully resolved subject: every level holds a literal id or Wildcard.
type Pattern struct {
	Root  string
	Class Class
	Scope Scope
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	root string
}

// WithRoot overrides the first subject token.
func WithRoot(root string) Option {
	return func(o *buildOptions) {
		o.root = root
	}
}

// Build resolves scope and class into a Pattern. Empty levels become Wildcard.
// ClassAlertInfo always covers every device in the project.
func Build(scope Scope, class Class, opts ...Option) (Pattern, error) {
	o := buildOptions{root: DefaultRoot}
	for _, opt := range opts {
		opt(&o)
	}

	lay, ok := layouts[class]
	if !ok {
		return Pattern{}, fmt.Errorf("unknown message class %q: %w", class, errors.ErrInvalidRequest)
	}
	if err := checkToken("root", o.root, false); err != nil {
		return Pattern{}, err
	}

	p := Pattern{Root: o.root, Class: class}
	p.Scope.Project = orWildcard(scope.Project)
	if err := checkToken("project", p.Scope.Project, true); err != nil {
		return Pattern{}, err
	}

	for _, l := range lay.levels {
		v := orWildcard(scope.get(l))
		if class == ClassAlertInfo {
			v = Wildcard
		}
		if err := checkToken(l.String(), v, true); err != nil {
			return Pattern{}, err
		}
		p.Scope.set(l, v)
	}
	return p, nil
}

// MustBuild is like Build but panics on error. Intended for fixed scopes in
// tests and package-level variables.
func MustBuild(scope Scope, class Class, opts ...Option) Pattern {
	p, err := Build(scope, class, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the pattern as a bus subject.
func (p Pattern) String() string {
	lay := layouts[p.Class]
	tokens := make([]string, 0, 3+len(lay.levels))
	tokens = append(tokens, p.Root, p.Scope.Project, lay.segment)
	for _, l := range lay.levels {
		tokens = append(tokens, p.Scope.get(l))
	}
	return strings.Join(tokens, separator)
}

// Concrete reports whether the pattern holds no wildcard.
func (p Pattern) Concrete() bool {
	return !strings.Contains(p.String(), Wildcard)
}

// Matches reports whether the concrete subject s is covered by the pattern.
func (p Pattern) Matches(s string) bool {
	return Match(p.String(), s)
}

// Parse splits a concrete subject into its pattern form. The root token is
// taken as-is. Parse accepts wildcard tokens, so it round-trips Pattern.String.
func Parse(s string) (Pattern, error) {
	tokens := strings.Split(s, separator)
	if len(tokens) < 3 {
		return Pattern{}, fmt.Errorf("subject %q: too few tokens: %w", s, errors.ErrInvalidData)
	}
	class, ok := ClassFromSegment(tokens[2])
	if !ok {
		return Pattern{}, fmt.Errorf("subject %q: unknown class segment %q: %w", s, tokens[2], errors.ErrInvalidData)
	}
	lay := layouts[class]
	if len(tokens) != 3+len(lay.levels) {
		return Pattern{}, fmt.Errorf("subject %q: %s expects %d tokens, got %d: %w",
			s, class, 3+len(lay.levels), len(tokens), errors.ErrInvalidData)
	}
	for _, tok := range tokens {
		if tok == "" {
			return Pattern{}, fmt.Errorf("subject %q: empty token: %w", s, errors.ErrInvalidData)
		}
	}

	p := Pattern{Root: tokens[0], Class: class}
	p.Scope.Project = tokens[1]
	for i, l := range lay.levels {
		p.Scope.set(l, tokens[3+i])
	}
	if class == ClassAlertInfo && p.Scope.Device != Wildcard {
		p.Class = ClassDeviceAlertInfo
	}
	return p, nil
}

// Match reports whether subject is covered by pattern. Both are compared token
// by token; "*" in pattern matches exactly one token and the token counts must
// be equal.
func Match(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pt := strings.Split(pattern, separator)
	st := strings.Split(subject, separator)
	if len(pt) != len(st) {
		return false
	}
	for i := range pt {
		if pt[i] == Wildcard {
			if st[i] == "" {
				return false
			}
			continue
		}
		if pt[i] != st[i] {
			return false
		}
	}
	return true
}

func orWildcard(v string) string {
	if v == "" {
		return Wildcard
	}
	return v
}

// checkToken rejects values that would change the shape of the subject.
func checkToken(name, v string, wildcardOK bool) error {
	switch {
	case v == "":
		return fmt.Errorf("%s token is empty: %w", name, errors.ErrInvalidRequest)
	case v == Wildcard:
		if !wildcardOK {
			return fmt.Errorf("%s token cannot be a wildcard: %w", name, errors.ErrInvalidRequest)
		}
		return nil
	case v == ">":
		return fmt.Errorf("%s: multi-level wildcard is not supported, use %q per level: %w",
			name, Wildcard, errors.ErrInvalidRequest)
	case strings.ContainsAny(v, ".*> \t\r\n"):
		return fmt.Errorf("%s token %q contains a reserved character: %w", name, v, errors.ErrInvalidRequest)
	}
	return nil
}
