package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/xmr/pkg/lsl"
)

// Host implements the intrinsics that reach outside the script: chat,
// timers and object identity.
type Host interface {
	CallHost(ctx context.Context, in *Instance, fn lsl.Intrinsic, args []lsl.Value) (lsl.Value, error)
}

// Message is one line of script chat.
type Message struct {
	Verb    string // llSay, llShout, llOwnerSay, ...
	Channel int32
	Text    string
}

// OwnerChannel is the channel recorded for llOwnerSay.
const OwnerChannel = -1

// LogHost is a standalone host. Chat goes to the log and, when set, to
// OnChat; timers and listens are recorded but never fire on their own.
type LogHost struct {
	OnChat func(in *Instance, msg Message)
	Name   string

	start      time.Time
	timer      float64
	nextListen int32
	listens    map[int32]bool
	now        func() time.Time
}

// NewLogHost returns a host whose clock starts now.
func NewLogHost() *LogHost {
	return &LogHost{
		Name:       "Object",
		start:      time.Now(),
		nextListen: 1,
		listens:    make(map[int32]bool),
		now:        time.Now,
	}
}

// TimerInterval is the last value given to llSetTimerEvent.
func (h *LogHost) TimerInterval() float64 { return h.timer }

func (h *LogHost) CallHost(ctx context.Context, in *Instance, fn lsl.Intrinsic, args []lsl.Value) (lsl.Value, error) {
	switch fn.Name {
	case "llSay", "llShout", "llWhisper", "llRegionSay":
		h.chat(in, Message{Verb: fn.Name, Channel: args[0].I, Text: args[1].S})
	case "llOwnerSay":
		h.chat(in, Message{Verb: fn.Name, Channel: OwnerChannel, Text: args[0].S})
	case "llSetText":
		log.Debugf("%s: set text %q", in.ID, args[0].S)
	case "llSetTimerEvent":
		h.timer = args[0].F
	case "llListen":
		id := h.nextListen
		h.nextListen++
		h.listens[id] = true
		return lsl.Int(id), nil
	case "llListenRemove":
		delete(h.listens, args[0].I)
	case "llMessageLinked":
		log.Debugf("%s: link message %d %d %q %s", in.ID, args[0].I, args[1].I, args[2].S, args[3].S)
	case "llGetKey":
		return lsl.Key(in.ID.String()), nil
	case "llGetOwner":
		return lsl.Key(lsl.NullKey), nil
	case "llGetObjectName":
		return lsl.String(h.Name), nil
	case "llGetTime":
		return lsl.Float(h.now().Sub(h.start).Seconds()), nil
	case "llResetTime":
		h.start = h.now()
	case "llGetUnixTime":
		return lsl.Int(int32(h.now().Unix())), nil
	case "llSleep":
		d := time.Duration(args[0].F * float64(time.Second))
		if d <= 0 {
			break
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return lsl.Value{}, ctx.Err()
		}
	default:
		return lsl.Value{}, fmt.Errorf("host does not implement %s", fn.Key())
	}
	return lsl.Value{}, nil
}

func (h *LogHost) chat(in *Instance, msg Message) {
	log.Noticef("[%s] %s(%d): %s", in.ID, msg.Verb, msg.Channel, msg.Text)
	if h.OnChat != nil {
		h.OnChat(in, msg)
	}
}
