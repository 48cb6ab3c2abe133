package hoststatus

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/todovault/core/internal/ports"
)

const (
	batteryCapacityPath = "/sys/class/power_supply/BAT0/capacity"
	loadavgPath         = "/proc/loadavg"

	lowBatteryThreshold = 15
	idleLoadThreshold   = 0.5
)

// Probe reports device conditions from the host OS. Machines without a
// battery are treated as battery-not-low; an unreadable loadavg counts
// as idle. The probe is the default ports.HostStatus implementation.
type Probe struct{}

var _ ports.HostStatus = (*Probe)(nil)

// New returns a host status probe.
func New() *Probe {
	return &Probe{}
}

func (p *Probe) BatteryNotLow() bool {
	data, err := os.ReadFile(batteryCapacityPath)
	if err != nil {
		return true
	}

	capacity, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true
	}

	return capacity > lowBatteryThreshold
}

func (p *Probe) DeviceIdle() bool {
	data, err := os.ReadFile(loadavgPath)
	if err != nil {
		return true
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return true
	}

	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return true
	}

	return load < idleLoadThreshold
}

func (p *Probe) NetworkAvailable() bool {
	conn, err := net.DialTimeout("tcp", "1.1.1.1:443", 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
