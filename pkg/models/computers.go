package models

import "time"

// ComputerID identifies a managed lab computer.
type ComputerID int64

// LabID identifies a lab grouping computers.
type LabID int64

// ActivityID identifies a single activity record.
type ActivityID int64

// Well-known activity types reported by agents.
const (
	ActivityHeartbeat   = "heartbeat"
	ActivityBoot        = "boot"
	ActivityAgentReport = "agent_report"
)

// Computer is a managed machine reporting through an agent.
type Computer struct {
	ID         ComputerID `json:"id"`
	Hostname   string     `json:"hostname"`
	LabID      *LabID     `json:"lab_id,omitempty"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ComputerActivity is an append-only event reported for a computer.
type ComputerActivity struct {
	ID         ActivityID     `json:"id"`
	ComputerID ComputerID     `json:"computer_id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
