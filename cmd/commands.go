package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"analyser/internal/audio"
	"analyser/internal/compare"
	"analyser/internal/config"
	applog "analyser/internal/log"
	"analyser/internal/source"
	"analyser/internal/tui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Replaceable in tests.
var (
	listDevices   = audio.Devices
	selectDevices = tui.StartDeviceListUI
)

func newPlayCommand(opts *options) *cobra.Command {
	var (
		headless bool
		dump     bool
		duration time.Duration
	)

	playCmd := &cobra.Command{
		Use:   "play <file.wav>",
		Short: "Compare the analysers on a WAV file played in real time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clip, err := source.Open(args[0])
			if err != nil {
				return err
			}
			s, err := newSession(opts.cfg, float64(clip.SampleRate))
			if err != nil {
				return err
			}
			defer closeSession(s)

			player := source.NewPlayer(clip)
			interval := opts.cfg.RefreshInterval()
			if headless {
				return runHeadless(cmd.Context(), s, player, interval, duration, cmd.OutOrStdout(), dump)
			}
			return runTUI(tui.NewSpectrumModel(filepath.Base(args[0]), s, player, interval), opts.logFile)
		},
	}

	playCmd.Flags().BoolVar(&headless, "headless", false,
		"Run without the terminal UI and print a summary when done")
	playCmd.Flags().DurationVar(&duration, "duration", 0,
		"Stop headless playback after this long (0 plays to the end)")
	playCmd.Flags().BoolVar(&dump, "dump", false,
		"Print the final byte spectra and differences in headless mode")
	return playCmd
}

// liveFlags mirrors the capture settings that can be overridden per run.
type liveFlags struct {
	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	record          bool
	output          string
	headless        bool
	duration        time.Duration
}

// apply copies the flags the user set onto cfg.
func (f *liveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
	}
}

func newLiveCommand(opts *options) *cobra.Command {
	flags := &liveFlags{}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Compare the analysers on a live input device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			capture, err := audio.NewCapture(cfg.Audio, cfg.SampleRate)
			if err != nil {
				return err
			}

			var sessionOpts []compare.Option
			if cfg.Recording.Enabled {
				rec, err := audio.NewRecorder(cfg.RecordingPath(time.Now()), int(cfg.SampleRate), cfg.Recording.BitDepth)
				if err != nil {
					return err
				}
				defer func() {
					if err := rec.Close(); err != nil {
						applog.Errorf("Recording: %v", err)
						return
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Recording saved to: %s\n", rec.Path())
				}()
				sessionOpts = append(sessionOpts, compare.WithSink(rec))
			}

			s, err := newSession(cfg, cfg.SampleRate, sessionOpts...)
			if err != nil {
				return err
			}
			defer closeSession(s)

			if err := capture.Start(); err != nil {
				return err
			}
			defer capture.Close()

			interval := cfg.RefreshInterval()
			if flags.headless {
				return runHeadless(cmd.Context(), s, capture, interval, flags.duration, cmd.OutOrStdout(), false)
			}
			return runTUI(tui.NewSpectrumModel("live input", s, capture, interval), opts.logFile)
		},
	}

	f := liveCmd.Flags()
	f.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'devices' command to see available devices.")
	f.IntVarP(&flags.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture; they are averaged to mono")
	f.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	f.BoolVarP(&flags.record, "record", "r", false,
		"Record the analysed mono signal to WAV")
	f.StringVarP(&flags.output, "output", "o", "",
		"Recording file name. Default is <output_dir>/recording-YYYYMMDD-HHMMSS.wav")
	f.BoolVar(&flags.headless, "headless", false,
		"Run without the terminal UI and print a summary on exit")
	f.DurationVar(&flags.duration, "duration", 0,
		"Stop headless capture after this long (0 runs until interrupted)")
	return liveCmd
}

func newDevicesCommand(opts *options) *cobra.Command {
	var plain bool

	devicesCmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"list"},
		Short:   "List available audio devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain {
				devices, err := listDevices()
				if err != nil {
					return err
				}
				return audio.WriteDevices(cmd.OutOrStdout(), devices)
			}

			sel, ok, err := selectDevices()
			if err != nil || !ok {
				return err
			}
			return writeSelection(cmd.OutOrStdout(), sel, opts.cfg.Audio)
		},
	}

	devicesCmd.Flags().BoolVar(&plain, "plain", false, "Print the device list instead of opening the UI")
	return devicesCmd
}

// writeSelection prints the configuration snippet for a device chosen in the
// device list.
func writeSelection(w io.Writer, sel tui.Selection, base config.AudioConfig) error {
	base.InputDevice = sel.Device.ID
	base.InputChannels = sel.Channels

	snippet := struct {
		SampleRate float64            `yaml:"sample_rate"`
		Audio      config.AudioConfig `yaml:"audio"`
	}{sel.SampleRate, base}

	if _, err := fmt.Fprintf(w, "# %s (%s)\n", sel.Device.Name, sel.Device.HostAPI); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snippet); err != nil {
		return err
	}
	return enc.Close()
}
