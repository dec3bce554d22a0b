// Package schedule implements the dynamic daily-schedule and availability
// engine behind every agent persona. Each agent lives on a simulated day
// plan: schedule items are generated through an LLM, cached per process,
// rotated into history as they expire, and looked up on every inbound
// message to decide whether the agent is reachable over chat, voice, or
// video.
package schedule

import (
	"fmt"
	"strings"
)

// Status is the coarse activity state of an agent during one schedule item.
// Statuses serialize as lowercase strings; this is the contract with both
// the LLM response shape and persisted history entries.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusSleeping    Status = "sleeping"
	StatusEating      Status = "eating"
	StatusWorking     Status = "working"
	StatusOut         Status = "out"
	StatusMaintenance Status = "maintenance"
	StatusShutdown    Status = "shutdown"
)

// ParseStatus normalizes s to lowercase and matches it against the known
// statuses. Unknown values produce a ValidationError.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusAvailable, StatusSleeping, StatusEating, StatusWorking,
		StatusOut, StatusMaintenance, StatusShutdown:
		return status, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("invalid status: %q", s)}
}

// Channel is a communication medium with independent availability per status.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelVoice Channel = "voice"
	ChannelVideo Channel = "video"
)

// Channels lists all communication channels.
var Channels = []Channel{ChannelChat, ChannelVoice, ChannelVideo}

// ParseChannel matches s against the known channels.
func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	switch ch {
	case ChannelChat, ChannelVoice, ChannelVideo:
		return ch, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("invalid channel: %q", s)}
}

// Availability is the per-channel reachability of an agent.
type Availability struct {
	Chat  bool `json:"chat"`
	Voice bool `json:"voice"`
	Video bool `json:"video"`
}

// On reports reachability on a single channel.
func (a Availability) On(ch Channel) bool {
	switch ch {
	case ChannelChat:
		return a.Chat
	case ChannelVoice:
		return a.Voice
	case ChannelVideo:
		return a.Video
	}
	return false
}

// statusAvailability is the fixed status -> availability table. It is data,
// not behavior: every status maps to exactly one row.
var statusAvailability = map[Status]Availability{
	StatusAvailable:   {Chat: true, Voice: true, Video: true},
	StatusSleeping:    {Chat: false, Voice: false, Video: false},
	StatusEating:      {Chat: true, Voice: false, Video: false},
	StatusWorking:     {Chat: true, Voice: true, Video: false},
	StatusOut:         {Chat: true, Voice: false, Video: false},
	StatusMaintenance: {Chat: false, Voice: false, Video: false},
	StatusShutdown:    {Chat: false, Voice: false, Video: false},
}

// AvailabilityFor returns the availability row for a status. Unknown
// statuses are fully unavailable (fail-closed).
func AvailabilityFor(status Status) Availability {
	return statusAvailability[status]
}
