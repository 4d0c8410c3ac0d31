package config

import (
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	EnvVarPrefix = "PJFLATE"

	DefaultChunkSize      = 64 * 1024
	DefaultReportInterval = duration(5 * time.Second)

	MinChunkSize      = 1
	MaxChunkSize      = 16 * 1024 * 1024
	MinReportInterval = duration(100 * time.Millisecond)
	MaxReportInterval = duration(1 * time.Hour)

	// Stdin/stdout placeholder for the input and output paths.
	StdioPath = "-"
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"
)

type Config struct {
	CLI  *CLI
	TOML *TOML
}

type TOML struct {
	IO     *TOMLIO     `toml:"io"`
	Report *TOMLReport `toml:"report"`
}

type TOMLIO struct {
	ChunkSize int `toml:"chunk_size"`
}

type TOMLReport struct {
	Interval duration `toml:"interval"`
}

type CLI struct {
	Input  string `kong:"arg,optional,help='Compressed input file (- for stdin)',default='-'"`
	Output string `kong:"help='Decompressed output file (- for stdout)',short='o',default='-'"`

	ConfigFile     string        `kong:"help='Path to an optional TOML config file',type='path',short='c'"`
	ChunkSize      int           `kong:"help='Read/write chunk size in bytes',default='65536'"`
	ReportInterval time.Duration `kong:"help='Interval to report progress',short='r',default='5s'"`
	Overwrite      bool          `kong:"help='Overwrite the output file if it exists',short='f'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Quiet   bool             `kong:"help='Disable progress output',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`

	// Internal bits
	Ctx *kong.Context `kong:"-"`
}

func NewConfig() (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs()
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig := &TOML{}

	if cli.ConfigFile != "" {
		tomlConfig, err = readTOML(cli.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	} else {
		if err := setTOMLDefaults(tomlConfig); err != nil {
			return nil, errors.Wrap(err, "error setting config defaults")
		}
	}

	// CLI flags that differ from their defaults win over the config file
	if cli.ChunkSize != DefaultChunkSize {
		tomlConfig.IO.ChunkSize = cli.ChunkSize
	}

	if cli.ReportInterval != time.Duration(DefaultReportInterval) {
		tomlConfig.Report.Interval = duration(cli.ReportInterval)
	}

	return &Config{
		CLI:  cli,
		TOML: tomlConfig,
	}, nil
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.IO == nil {
		t.IO = &TOMLIO{}
	}

	if t.Report == nil {
		t.Report = &TOMLReport{}
	}

	// Set defaults for [io]
	if t.IO.ChunkSize == 0 {
		t.IO.ChunkSize = DefaultChunkSize
	}

	// Set defaults for [report]
	if t.Report.Interval == 0 {
		t.Report.Interval = DefaultReportInterval
	}

	return nil
}

func Validate(c *Config) error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(c.TOML); err != nil {
		return errors.Wrap(err, "error validating toml config")
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	// Validate [io]
	if err := validateTOMLIO(t.IO); err != nil {
		return errors.Wrap(err, "io error(s)")
	}

	// Validate [report]
	if err := validateTOMLReport(t.Report); err != nil {
		return errors.Wrap(err, "report error(s)")
	}

	return nil
}

func validateTOMLIO(io *TOMLIO) error {
	if io == nil {
		return errors.New("io cannot be empty")
	}

	if io.ChunkSize < MinChunkSize || io.ChunkSize > MaxChunkSize {
		return errors.Errorf("io.chunk_size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}

	return nil
}

func validateTOMLReport(r *TOMLReport) error {
	if r == nil {
		return errors.New("report cannot be empty")
	}

	if r.Interval < MinReportInterval || r.Interval > MaxReportInterval {
		return errors.Errorf("report.interval must be between %s and %s", MinReportInterval, MaxReportInterval)
	}

	return nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	if cli.Input == "" {
		return errors.New("input cannot be empty")
	}

	if cli.Input != StdioPath {
		info, err := os.Stat(cli.Input)
		if os.IsNotExist(err) {
			return errors.Errorf("input file %s does not exist", cli.Input)
		}

		if err == nil && info.IsDir() {
			return errors.Errorf("input file %s is a directory", cli.Input)
		}
	}

	if cli.Output == "" {
		return errors.New("output cannot be empty")
	}

	if cli.Output != StdioPath && !cli.Overwrite {
		if _, err := os.Stat(cli.Output); err == nil {
			return errors.Errorf("output file %s already exists (use -f to overwrite)", cli.Output)
		}
	}

	return nil
}

func readCLIArgs() (*CLI, error) {
	cli := &CLI{}
	cli.Ctx = kong.Parse(cli,
		kong.Name("pjflate"),
		kong.Description("Streaming zlib/DEFLATE decompressor"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		})

	return cli, nil
}

func readTOML(file string) (*TOML, error) {
	// Attempt to load file
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	tomlConfig := &TOML{}

	if err := toml.Unmarshal(data, tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML config")
	}

	// Set defaults
	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	// Validate loaded config
	if err := validateTOML(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error validating TOML config")
	}

	return tomlConfig, nil
}

// Interval returns the report interval as a time.Duration.
func (t *TOML) Interval() time.Duration {
	return time.Duration(t.Report.Interval)
}

// Copied from https://www.kelche.co/blog/go/toml/
type duration time.Duration

func (d duration) String() string {
	return time.Duration(d).String()
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}
