package main

import "time"

// GlobalFlags holds the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// DashboardFlags holds flags for the dashboard command
type DashboardFlags struct {
	PushURL       string
	NoPush        bool
	MetricsListen string
}

// StatsFlags holds flags for the stats command
type StatsFlags struct {
	JSON bool
}

// WatchFlags holds flags for the watch command
type WatchFlags struct {
	PushURL string
}
