package audio

import (
	"fmt"
	"io"
	"time"
)

// Device describes a host audio device.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
	IsDefaultInput    bool
}

// Kind returns "Input", "Output", "Input/Output" or "".
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return ""
	}
}

// Devices initialises PortAudio, lists every host device and terminates it
// again. Use HostDevices when PortAudio is already initialised.
func Devices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	return HostDevices()
}

// WriteDevices prints one block per device, with the default input marked.
func WriteDevices(w io.Writer, devices []Device) error {
	if _, err := fmt.Fprintf(w, "\nAvailable Audio Devices\n\n"); err != nil {
		return err
	}
	for _, d := range devices {
		marker := ""
		if d.IsDefaultInput {
			marker = " *default input*"
		}
		_, err := fmt.Fprintf(w, "[%d] %s (%s)%s\n"+
			"    Host API: %s\n"+
			"    Input channels: %d, Output channels: %d\n"+
			"    Default sample rate: %.0f Hz\n"+
			"    Latency: Low=%.2fms, High=%.2fms\n\n",
			d.ID, d.Name, d.Kind(), marker,
			d.HostAPI,
			d.MaxInputChannels, d.MaxOutputChannels,
			d.DefaultSampleRate,
			d.LowInputLatency.Seconds()*1000, d.HighInputLatency.Seconds()*1000)
		if err != nil {
			return err
		}
	}
	return nil
}
