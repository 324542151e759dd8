package models

import "time"

// ClientInfo describes who asked for a download.
type ClientInfo struct {
	IP        string `json:"ip,omitempty" yaml:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

type DownloadEvent struct {
	AppID  string     `json:"appId" yaml:"appId"`
	Client ClientInfo `json:"client" yaml:"client"`
	At     time.Time  `json:"at" yaml:"at"`
}
