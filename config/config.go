package config

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Will be set by go-build
var (
	Version string
	Rev     string
)

//go:embed market_collector.example.yml
var exampleConfig string

// Environment variables which historically configure the job, keyed by config key.
var envBindings = map[string]string{
	"api_key":             "DAPPLOOKER_API_KEY",
	"upload.host":         "IRYS_NODE",
	"upload.token":        "IRYS_TOKEN",
	"upload.wallet":       "WALLET_PRIVATE_KEY",
	"upload.enabled":      "UPLOAD_ENABLED",
	"database.dsn":        "DATABASE_URL",
	"metrics.pushgateway": "PUSHGATEWAY_URL",
}

func Parse() *Config {
	// Set log format
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(colorable.NewColorableStderr()) // For Windows

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Error loading .env file: %v", err)
	}

	showVersion := pflag.BoolP("version", "v", false, "Show version number")
	showHelp := pflag.BoolP("help", "h", false, "Show usage message")
	pflag.CommandLine.MarkHidden("help")
	pflag.BoolP("debug", "d", false, "Enable debug mode")

	var configFile string
	pflag.StringVarP(&configFile, "config-file", "c", "", `Config file path, use "--example-config-file <path>" `+
		"to generate an example config file,\n"+
		"by default market-collector uses \"market_collector.yml\" in current directory or $HOME as config file")
	var exampleConfigFile string
	pflag.StringVar(&exampleConfigFile, "example-config-file", "",
		"Generate example config file to the specified file path, by default it outputs to stdout")
	pflag.Lookup("example-config-file").NoOptDefVal = "-"

	pflag.StringSlice("chains", defaultChains(), "Comma-separated chains to collect")
	pflag.StringP("output-dir", "o", ".", "Directory for CSV artifacts and the log file")
	pflag.StringP("proxy", "p", "", "Proxy used when sending HTTP request \n(eg. "+
		"\"http://localhost:7777\", \"https://localhost:7777\", \"socks5://localhost:1080\")")
	pflag.IntP("timeout", "t", 60, "HTTP request timeout in seconds")
	pflag.Bool("upload", true, "Upload the market data CSV when the run completes")
	pflag.CommandLine.SortFlags = false
	pflag.Usage = showUsageAndExit
	pflag.Parse()

	if *showHelp {
		showUsageAndExit()
	}

	if *showVersion {
		fmt.Fprintf(os.Stderr, "Version %s", Version)
		if Rev != "" {
			fmt.Fprintf(os.Stderr, ", build %s", Rev)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(0)
	}

	if exampleConfigFile != "" {
		writeExampleConfig(exampleConfigFile)
		os.Exit(0)
	}

	v := viper.GetViper()
	setDefaults(v)
	v.BindPFlag("debug", pflag.Lookup("debug"))
	v.BindPFlag("chains", pflag.Lookup("chains"))
	v.BindPFlag("output_dir", pflag.Lookup("output-dir"))
	v.BindPFlag("proxy", pflag.Lookup("proxy"))
	v.BindPFlag("timeout", pflag.Lookup("timeout"))
	v.BindPFlag("upload.enabled", pflag.Lookup("upload"))

	// Set configure file
	v.SetConfigName("market_collector") // name of config file (without extension)
	v.AddConfigPath(".")                // path to look for the config file in
	v.AddConfigPath("$HOME")            // optionally look for config in the HOME directory
	v.AddConfigPath("/etc")             // and /etc
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			logrus.Debugln("No config file found, using flags and environment")
		default:
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	cfg, err := Load(v)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.Debugln("Using config file:", v.ConfigFileUsed())
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metainfo_url", DefaultMetainfoURL)
	v.SetDefault("market_url", DefaultMarketURL)
	v.SetDefault("chains", defaultChains())
	v.SetDefault("timeout", 60)
	v.SetDefault("individual_timeout", 30)
	v.SetDefault("page_size", 100)
	v.SetDefault("page_delay", "200ms")
	v.SetDefault("batch_delay", "200ms")
	v.SetDefault("token_delay", "100ms")
	v.SetDefault("clean_batch_size", 30)
	v.SetDefault("problematic_batch_size", 10)
	v.SetDefault("output_dir", ".")
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("retention_days", 4)

	v.SetDefault("upload.enabled", true)
	v.SetDefault("upload.command", "irys")
	v.SetDefault("upload.host", "https://uploader.irys.xyz")
	v.SetDefault("upload.token", "ethereum")
	v.SetDefault("upload.app_name", "DappLooker")
	v.SetDefault("upload.gateway", "https://gateway.irys.xyz")
	v.SetDefault("upload.explorer", "https://explorer.irys.xyz/tx")
	v.SetDefault("upload.timeout", 300)

	v.SetDefault("metrics.job", "market_collector")

	for key, env := range envBindings {
		v.BindEnv(key, env)
	}
}

// Load decodes and validates the configuration held by v. Defaults and
// environment bindings are installed first, so a bare viper.New() works.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %q", v.ConfigFileUsed())
	}
	for i, chain := range cfg.Chains {
		cfg.Chains[i] = strings.ToLower(strings.TrimSpace(chain))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("api key is required, set DAPPLOOKER_API_KEY or api_key in the config file")
	}
	if len(c.Chains) == 0 {
		return errors.New("at least one chain is required")
	}
	if c.PageSize <= 0 {
		return errors.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.CleanBatchSize <= 0 || c.ProblematicBatchSize <= 0 {
		return errors.Errorf("batch sizes must be positive, got %d/%d", c.CleanBatchSize, c.ProblematicBatchSize)
	}
	if c.RetentionDays <= 0 {
		return errors.Errorf("retention_days must be positive, got %d", c.RetentionDays)
	}
	return nil
}

// SetupLogging mirrors log output into the persistent log file. The returned
// closer must be closed on exit.
func SetupLogging(cfg *Config) (io.Closer, error) {
	logPath := cfg.LogPath()
	if logPath == "" {
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", logPath)
	}
	logrus.SetOutput(io.MultiWriter(colorable.NewColorableStderr(), f))
	return f, nil
}

func showUsageAndExit() {
	// Print usage message and exit
	fmt.Fprintf(os.Stderr, "\nUsage: %s [Options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "\nCollect token market data per chain into a CSV file and upload it")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	pflag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nEnvironment:")
	fmt.Fprintln(os.Stderr, "  DAPPLOOKER_API_KEY, IRYS_NODE, IRYS_TOKEN, WALLET_PRIVATE_KEY, UPLOAD_ENABLED,"+
		" DATABASE_URL, PUSHGATEWAY_URL (a .env file in the working directory is loaded first)")
	os.Exit(0)
}

func writeExampleConfig(fpath string) {
	fout, err := os.Stdout, error(nil)
	if fpath != "-" {
		if _, err := os.Stat(fpath); err == nil {
			logrus.Warnf("%s already exists, skipping", fpath)
			return
		}
		if fout, err = os.Create(fpath); err != nil {
			logrus.Errorf("Failed to create config file %s, error: %v", fpath, err)
			return
		}
		defer fout.Close()
	}
	if _, err := fout.WriteString(exampleConfig); err != nil {
		logrus.Errorf("Failed to write config file %s, error: %v", fpath, err)
	} else if fout != os.Stdout {
		logrus.Infof("Write example config file to %s", fpath)
	}
}
