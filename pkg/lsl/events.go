package lsl

// EventCode indexes the fixed event catalog. The order is part of the
// object-code format: handler entry points encode it in their names.
type EventCode int

// Event describes one legal event handler signature.
type Event struct {
	Name   string
	Params []Tag
}

// Events is the catalog of legal handlers, indexed by EventCode.
var Events = func() []Event {
	const (
		i = TagInt
		s = TagString
		k = TagKey
		l = TagList
		v = TagVector
		r = TagRotation
	)
	return []Event{
		{"at_rot_target", []Tag{i, r, r}},
		{"at_target", []Tag{i, v, v}},
		{"attach", []Tag{k}},
		{"changed", []Tag{i}},
		{"collision", []Tag{i}},
		{"collision_end", []Tag{i}},
		{"collision_start", []Tag{i}},
		{"control", []Tag{k, i, i}},
		{"dataserver", []Tag{k, s}},
		{"email", []Tag{s, s, s, s, i}},
		{"http_request", []Tag{k, s, s}},
		{"http_response", []Tag{k, i, l, s}},
		{"land_collision", []Tag{v}},
		{"land_collision_end", []Tag{v}},
		{"land_collision_start", []Tag{v}},
		{"link_message", []Tag{i, i, s, k}},
		{"listen", []Tag{i, s, k, s}},
		{"money", []Tag{k, i}},
		{"moving_end", nil},
		{"moving_start", nil},
		{"no_sensor", nil},
		{"not_at_rot_target", nil},
		{"not_at_target", nil},
		{"object_rez", []Tag{k}},
		{"on_rez", []Tag{i}},
		{"remote_data", []Tag{i, k, k, s, i, s}},
		{"run_time_permissions", []Tag{i}},
		{"sensor", []Tag{i}},
		{"state_entry", nil},
		{"state_exit", nil},
		{"timer", nil},
		{"touch", []Tag{i}},
		{"touch_start", []Tag{i}},
		{"touch_end", []Tag{i}},
	}
}()

// EventCount is the width of a dispatch table row.
var EventCount = len(Events)

var eventIndex = func() map[string]EventCode {
	m := make(map[string]EventCode, len(Events))
	for i, e := range Events {
		m[e.Name] = EventCode(i)
	}
	return m
}()

// LookupEvent finds an event by handler name.
func LookupEvent(name string) (EventCode, bool) {
	c, ok := eventIndex[name]
	return c, ok
}

// Well-known codes used by the runtime.
var (
	EventStateEntry = eventIndex["state_entry"]
	EventStateExit  = eventIndex["state_exit"]
)

func (c EventCode) String() string {
	if c >= 0 && int(c) < len(Events) {
		return Events[c].Name
	}
	return "?"
}
