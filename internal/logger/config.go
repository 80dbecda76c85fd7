package logger

import "errors"

// Level is a log level name.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format selects the zap encoder.
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

var (
	ErrInvalidOutputPath = errors.New("logger: file output enabled without output_path")
	ErrNoOutputEnabled   = errors.New("logger: neither console nor file output enabled")
)

// Config controls encoder, level and outputs.
type Config struct {
	Level         Level  `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format        Format `mapstructure:"format" validate:"omitempty,oneof=json console"`
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
	OutputPath    string `mapstructure:"output_path"`
	TimeFormat    string `mapstructure:"time_format"`
	Development   bool   `mapstructure:"development"`

	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig is passed through to lumberjack.
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`    // MB
	MaxBackups int  `mapstructure:"max_backups"` // files kept
	MaxAge     int  `mapstructure:"max_age"`     // days
	Compress   bool `mapstructure:"compress"`
}

// DefaultConfig logs info and above to stdout in console format.
func DefaultConfig() *Config {
	return &Config{
		Level:         InfoLevel,
		Format:        ConsoleFormat,
		EnableConsole: true,
		TimeFormat:    "2006-01-02 15:04:05",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Validate checks output settings.
func (c *Config) Validate() error {
	if c.EnableFile && c.OutputPath == "" {
		return ErrInvalidOutputPath
	}
	if !c.EnableConsole && !c.EnableFile {
		return ErrNoOutputEnabled
	}
	return nil
}
