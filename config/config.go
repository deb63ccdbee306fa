// Package config maps command line flags, optionally overridden by a YAML
// configuration file, to the options of the proxy.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/htmlslim/htmlslim"
)

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address           string        `yaml:"address"`
	RoutesFile        string        `yaml:"routes-file"`
	Insecure          bool          `yaml:"insecure"`
	ProxyPreserveHost bool          `yaml:"proxy-preserve-host"`
	RemoveHopHeaders  bool          `yaml:"remove-hop-headers"`
	IdleConnsPerHost  int           `yaml:"idle-conns-num"`
	FlushInterval     time.Duration `yaml:"flush-interval"`

	// timeouts:
	ResponseHeaderTimeout time.Duration `yaml:"response-header-timeout"`
	ReadTimeoutServer     time.Duration `yaml:"read-timeout-server"`
	WriteTimeoutServer    time.Duration `yaml:"write-timeout-server"`

	// logging:
	ApplicationLog            string `yaml:"application-log"`
	ApplicationLogPrefix      string `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled bool   `yaml:"application-log-json-enabled"`
	AccessLog                 string `yaml:"access-log"`
	AccessLogDisabled         bool   `yaml:"access-log-disabled"`
	AccessLogJSONEnabled      bool   `yaml:"access-log-json-enabled"`

	// metrics:
	MetricsListener      string `yaml:"metrics-listener"`
	MetricsPrefix        string `yaml:"metrics-prefix"`
	EnableRuntimeMetrics bool   `yaml:"enable-runtime-metrics"`
}

func NewConfig() *Config {
	cfg := new(Config)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", ":9090", "network address that htmlslim should listen on")
	flag.StringVar(&cfg.RoutesFile, "routes-file", "", "path of the YAML route table to serve")
	flag.BoolVar(&cfg.Insecure, "insecure", false, "flag indicating to ignore the verification of the TLS certificates of the backend services")
	flag.BoolVar(&cfg.ProxyPreserveHost, "proxy-preserve-host", false, "flag indicating to preserve the incoming request 'Host' header in the outgoing requests")
	flag.BoolVar(&cfg.RemoveHopHeaders, "remove-hop-headers", false, "enables removal of Hop-Headers according to RFC-2616")
	flag.IntVar(&cfg.IdleConnsPerHost, "idle-conns-num", 0, "maximum idle connections per backend host")
	flag.DurationVar(&cfg.FlushInterval, "flush-interval", 0, "interval of flushing the streamed responses to the client, negative flushes after every write")

	// timeouts:
	flag.DurationVar(&cfg.ResponseHeaderTimeout, "response-header-timeout", 0, "set a response header timeout for the backend roundtrips")
	flag.DurationVar(&cfg.ReadTimeoutServer, "read-timeout-server", 5*time.Minute, "set ReadTimeout for http server connections")
	flag.DurationVar(&cfg.WriteTimeoutServer, "write-timeout-server", 0, "set WriteTimeout for http server connections")

	// logging:
	flag.StringVar(&cfg.ApplicationLog, "application-log", "", "output file for the application log, when not set, /dev/stderr is used")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "[APP]", "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, the application log entries are logged in JSON format")
	flag.StringVar(&cfg.AccessLog, "access-log", "", "output file for the access log, when not set, /dev/stderr is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, the access log entries are logged in JSON format")

	// metrics:
	flag.StringVar(&cfg.MetricsListener, "metrics-listener", "", "network address used for exposing the /metrics endpoint, an empty value disables it")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", "", "allows setting a custom name prefix for the exposed metrics")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "enable-runtime-metrics", false, "enables reporting of the Go runtime metrics")

	cfg.Flags = flag
	return cfg
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	if err := c.Flags.Parse(args); err != nil {
		return err
	}

	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		if err := yaml.UnmarshalStrict(yamlFile, c); err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		// command line flags win over the file
		if err := c.Flags.Parse(args); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) ToOptions() htmlslim.Options {
	return htmlslim.Options{
		Address:    c.Address,
		RoutesFile: c.RoutesFile,

		Insecure:          c.Insecure,
		ProxyPreserveHost: c.ProxyPreserveHost,
		RemoveHopHeaders:  c.RemoveHopHeaders,
		IdleConnsPerHost:  c.IdleConnsPerHost,
		FlushInterval:     c.FlushInterval,

		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		ReadTimeoutServer:     c.ReadTimeoutServer,
		WriteTimeoutServer:    c.WriteTimeoutServer,

		ApplicationLogOutput:      c.ApplicationLog,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		AccessLogOutput:           c.AccessLog,
		AccessLogDisabled:         c.AccessLogDisabled,
		AccessLogJSONEnabled:      c.AccessLogJSONEnabled,

		MetricsListener:      c.MetricsListener,
		MetricsPrefix:        c.MetricsPrefix,
		EnableRuntimeMetrics: c.EnableRuntimeMetrics,
	}
}
