package cameracapture

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration consumed by camcapture and by
// applications that prefer a file over Options
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Format FormatConfig `yaml:"format"`
	Queue  QueueConfig  `yaml:"queue"`
	Warmup WarmupConfig `yaml:"warmup"`
	Reopen ReopenConfig `yaml:"reopen"`
}

// DeviceConfig selects the capture device
type DeviceConfig struct {
	Index          int   `yaml:"index"`
	ValidateFormat *bool `yaml:"validate_format,omitempty"` // check against advertised caps (default: true)
}

// FormatConfig is the requested camera format
type FormatConfig struct {
	Resolution string `yaml:"resolution"` // e.g. 1280x720 (default: 640x480)
	Encoding   string `yaml:"encoding"`   // MJPEG, YUYV, RGB (default: MJPEG)
	FPS        uint32 `yaml:"fps"`        // default: 15
}

// QueueConfig bounds the frame queue
type QueueConfig struct {
	Capacity int    `yaml:"capacity"` // 0 = unbounded
	Overflow string `yaml:"overflow"` // block, drop-oldest (default: block)
}

// WarmupConfig controls the warm-up measurement after open
type WarmupConfig struct {
	DurationS int `yaml:"duration_s"` // 0 disables warm-up
}

// ReopenConfig controls OpenStreamWithRetry
type ReopenConfig struct {
	MaxRetries      int `yaml:"max_retries"`        // default: 5
	RetryDelayMS    int `yaml:"retry_delay_ms"`     // default: 500
	MaxRetryDelayMS int `yaml:"max_retry_delay_ms"` // default: 8000
}

// LoadConfig reads and parses a YAML configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, applies defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	const op = "validate config"

	if c.Device.Index < 0 {
		return newError(KindInvalidFormat, op, fmt.Errorf("device.index must be >= 0"))
	}

	def := DefaultCameraFormat()
	if c.Format.Resolution == "" {
		c.Format.Resolution = def.Resolution.String()
	}
	if c.Format.Encoding == "" {
		c.Format.Encoding = def.Format.String()
	}
	if c.Format.FPS == 0 {
		c.Format.FPS = def.FrameRate
	}
	if _, err := c.CameraFormat(); err != nil {
		return err
	}

	if c.Queue.Capacity < 0 {
		return newError(KindInvalidFormat, op, fmt.Errorf("queue.capacity must be >= 0"))
	}
	if c.Queue.Overflow == "" {
		c.Queue.Overflow = OverflowBlock.String()
	}
	if _, err := parseOverflowPolicy(c.Queue.Overflow); err != nil {
		return newError(KindInvalidFormat, op, err)
	}

	if c.Warmup.DurationS < 0 {
		return newError(KindInvalidFormat, op, fmt.Errorf("warmup.duration_s must be >= 0"))
	}

	retry := DefaultRetryConfig()
	if c.Reopen.MaxRetries <= 0 {
		c.Reopen.MaxRetries = retry.MaxRetries
	}
	if c.Reopen.RetryDelayMS <= 0 {
		c.Reopen.RetryDelayMS = int(retry.RetryDelay / time.Millisecond)
	}
	if c.Reopen.MaxRetryDelayMS <= 0 {
		c.Reopen.MaxRetryDelayMS = int(retry.MaxRetryDelay / time.Millisecond)
	}
	if c.Reopen.MaxRetryDelayMS < c.Reopen.RetryDelayMS {
		return newError(KindInvalidFormat, op,
			fmt.Errorf("reopen.max_retry_delay_ms (%d) < reopen.retry_delay_ms (%d)",
				c.Reopen.MaxRetryDelayMS, c.Reopen.RetryDelayMS))
	}

	return nil
}

// CameraFormat returns the configured format
func (c *Config) CameraFormat() (CameraFormat, error) {
	const op = "config format"

	res, err := ParseResolution(c.Format.Resolution)
	if err != nil {
		return CameraFormat{}, newError(KindInvalidFormat, op, err)
	}
	enc, err := ParseFrameFormat(c.Format.Encoding)
	if err != nil {
		return CameraFormat{}, newError(KindInvalidFormat, op, err)
	}
	f := NewCameraFormat(res, enc, c.Format.FPS)
	if err := f.Validate(); err != nil {
		return CameraFormat{}, err
	}
	return f, nil
}

// QueueOptions returns the configured queue bound
func (c *Config) QueueOptions() QueueOptions {
	policy, _ := parseOverflowPolicy(c.Queue.Overflow)
	return QueueOptions{Capacity: c.Queue.Capacity, Overflow: policy}
}

// Options returns the Camera options described by the configuration
func (c *Config) Options() []Option {
	opts := []Option{WithQueue(c.QueueOptions())}
	if c.Device.ValidateFormat != nil {
		opts = append(opts, WithFormatValidation(*c.Device.ValidateFormat))
	}
	return opts
}

// RetryConfig returns the configured reopen backoff
func (c *Config) RetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    c.Reopen.MaxRetries,
		RetryDelay:    time.Duration(c.Reopen.RetryDelayMS) * time.Millisecond,
		MaxRetryDelay: time.Duration(c.Reopen.MaxRetryDelayMS) * time.Millisecond,
	}
}

// WarmupDuration returns the configured warm-up window (0 = disabled)
func (c *Config) WarmupDuration() time.Duration {
	return time.Duration(c.Warmup.DurationS) * time.Second
}

func parseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "block", "":
		return OverflowBlock, nil
	case "drop-oldest", "drop_oldest":
		return OverflowDropOldest, nil
	default:
		return OverflowBlock, fmt.Errorf("unknown queue.overflow %q (want block or drop-oldest)", s)
	}
}
