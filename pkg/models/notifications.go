package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserID identifies a platform user.
type UserID int64

// NotificationID identifies a persisted notification.
type NotificationID int64

// EventType is the dotted identifier of a notification event.
type EventType string

// The closed set of events the platform notifies about.
const (
	EventComputerOnline    EventType = "computer.online"
	EventComputerOffline   EventType = "computer.offline"
	EventSoftwareInstalled EventType = "software.installed"
	EventSoftwareRemoved   EventType = "software.removed"
	EventHardwareCPUHigh   EventType = "hardware.cpu_high"
	EventHardwareMemHigh   EventType = "hardware.memory_high"
	EventHardwareDiskHigh  EventType = "hardware.disk_high"
	EventHardwareOffline   EventType = "hardware.offline"
	EventHardwareThreshold EventType = "hardware.threshold"
	EventAlertResolved     EventType = "alert.resolved"
)

// ResourceType names the kind of resource a notification refers to.
type ResourceType string

const (
	ResourceComputer ResourceType = "computer"
	ResourceLab      ResourceType = "lab"
)

// Notification is a message delivered to one recipient.
type Notification struct {
	ID        NotificationID `json:"id"`
	UserID    UserID         `json:"user_id"`
	Type      EventType      `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// User is a platform account able to receive notifications.
type User struct {
	ID        UserID    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
