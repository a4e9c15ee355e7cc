// Package pm2 talks to the PM2 process manager through its CLI.
//
// PM2 is treated as an opaque command-line oracle: the only contract is
// that `pm2 jlist` prints a JSON array of process records and that
// restart/logs subcommands exist. Only the handful of fields pm2watch
// needs are decoded; the rest of the (large) jlist schema is ignored.
package pm2

import "time"

// Status labels PM2 reports for a process. Treated as opaque comparable
// strings by the diffing core; listed here only for display decisions.
const (
	StatusOnline   = "online"
	StatusStopped  = "stopped"
	StatusErrored  = "errored"
	StatusLaunch   = "launching"
	StatusStopping = "stopping"
	StatusUnknown  = "unknown"
)

// Process is one entry of the PM2 process list.
type Process struct {
	Name     string
	ID       int
	Status   string
	CPU      float64 // percent
	Memory   int64   // bytes
	Restarts int
	Uptime   time.Duration
}

// jlistRecord mirrors the slice of the `pm2 jlist` schema we decode.
type jlistRecord struct {
	Name string `json:"name"`
	PMID int    `json:"pm_id"`
	Env  struct {
		Status      string `json:"status"`
		PMUptime    int64  `json:"pm_uptime"` // unix millis of last start
		RestartTime int    `json:"restart_time"`
	} `json:"pm2_env"`
	Monit struct {
		CPU    float64 `json:"cpu"`
		Memory int64   `json:"memory"`
	} `json:"monit"`
}
