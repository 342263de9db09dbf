package models

import (
	"time"
)

type CTLog struct {
	URL      string    `json:"url"       yaml:"url"`
	TreeSize uint64    `json:"tree_size" yaml:"tree_size,omitempty"`
	LastSync time.Time `json:"last_sync" yaml:"last_sync,omitempty"`
}

// CTLogEntry is one leaf read from a log, reduced to the names it carries.
type CTLogEntry struct {
	LogURL    string    `json:"log_url"`
	Index     int64     `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Names     []string  `json:"names"`
	Precert   bool      `json:"precert,omitempty"`
}
