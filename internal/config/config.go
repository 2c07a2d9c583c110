package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when no way to authenticate against
// the store was configured.
var ErrMissingCredentials = errors.New("db_username and db_password (or mongo_uri) must be set")

// Config is the resolved configuration of one run.
type Config struct {
	DBUsername string
	DBPassword string
	MongoHost  string
	MongoURI   string
	Database   string

	BuildingCollection string
	CaseCollection     string
	BuildingUniqueKeys []string
	CaseUniqueKeys     []string

	BuildingURL    string
	CaseURL        string
	ArchiveBaseURL string
	Date           string

	HTTPTimeout  time.Duration
	MongoTimeout time.Duration

	RunLog    string
	LogLevel  string
	LogFormat string
	DryRun    bool
}

type setting struct {
	key   string
	def   any
	usage string
}

// settings lists every configuration key. The flag name is the key with
// "_" replaced by "-"; the environment variable is the key itself or its
// upper-case form.
var settings = []setting{
	{"db_username", "", "MongoDB user name"},
	{"db_password", "", "MongoDB password"},
	{"mongo_host", "cluster0.acsxl.mongodb.net", "MongoDB Atlas host (mongodb+srv)"},
	{"mongo_uri", "", "full MongoDB connection string, overrides mongo_host; <password> is substituted"},
	{"database", "covid_hk", "target database"},
	{"building_collection", "building_list", "collection for the building list"},
	{"case_collection", "case_details", "collection for the case details"},
	{"building_unique_keys", []string{}, "fields of a unique index ensured on the building collection"},
	{"case_unique_keys", []string{}, "fields of a unique index ensured on the case collection"},
	{"building_url", "http://www.chp.gov.hk/files/misc/building_list_eng.csv", "archived building list file"},
	{"case_url", "http://www.chp.gov.hk/files/misc/enhanced_sur_covid_19_eng.csv", "live case details file"},
	{"archive_base_url", "https://api.data.gov.hk/v1/historical-archive", "historical archive API root"},
	{"date", "", "archive day to load as YYYYMMDD (default: yesterday)"},
	{"http_timeout", 60 * time.Second, "timeout of each HTTP request"},
	{"mongo_timeout", 30 * time.Second, "timeout for MongoDB connect, ping and index operations"},
	{"run_log", "", "SQLite file recording run history (empty disables)"},
	{"log_level", "info", "debug, info, warn or error"},
	{"log_format", "json", "json or console"},
	{"env_file", defaultEnvFile, "dotenv file read if present"},
	{"dry_run", false, "fetch and transform without loading"},
}

// FlagName returns the command-line flag for a configuration key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterFlags adds one flag per configuration key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		name := FlagName(s.key)
		switch def := s.def.(type) {
		case string:
			fs.String(name, def, s.usage)
		case bool:
			fs.Bool(name, def, s.usage)
		case time.Duration:
			fs.Duration(name, def, s.usage)
		case []string:
			fs.StringSlice(name, def, s.usage)
		}
	}
}

// Load resolves the configuration from flags, the environment and the
// dotenv file, in that priority order. Flags must have been registered
// with RegisterFlags.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	for _, s := range settings {
		if f := fs.Lookup(FlagName(s.key)); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return nil, errors.Wrapf(err, "bind flag %s", f.Name)
			}
		}
		if err := v.BindEnv(s.key, s.key, strings.ToUpper(s.key)); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", s.key)
		}
	}

	if err := readEnvFile(v); err != nil {
		return nil, err
	}

	c := &Config{
		DBUsername:         v.GetString("db_username"),
		DBPassword:         v.GetString("db_password"),
		MongoHost:          v.GetString("mongo_host"),
		MongoURI:           v.GetString("mongo_uri"),
		Database:           v.GetString("database"),
		BuildingCollection: v.GetString("building_collection"),
		CaseCollection:     v.GetString("case_collection"),
		BuildingUniqueKeys: fieldList(v, "building_unique_keys"),
		CaseUniqueKeys:     fieldList(v, "case_unique_keys"),
		BuildingURL:        v.GetString("building_url"),
		CaseURL:            v.GetString("case_url"),
		ArchiveBaseURL:     v.GetString("archive_base_url"),
		Date:               v.GetString("date"),
		HTTPTimeout:        v.GetDuration("http_timeout"),
		MongoTimeout:       v.GetDuration("mongo_timeout"),
		RunLog:             v.GetString("run_log"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		DryRun:             v.GetBool("dry_run"),
	}
	return c, c.Validate()
}

// fieldList reads a comma-separated list of field names. Flags arrive as a
// slice, the environment and the dotenv file as one string; both are split
// on commas only, since field names may contain spaces.
func fieldList(v *viper.Viper, key string) []string {
	var items []string
	switch raw := v.Get(key).(type) {
	case string:
		items = strings.Split(raw, ",")
	case []string:
		items = raw
	case []any:
		for _, x := range raw {
			items = append(items, fmt.Sprint(x))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

const defaultEnvFile = ".env"

// readEnvFile merges the dotenv file into v. A missing file is only an
// error when it is not the default one.
func readEnvFile(v *viper.Viper) error {
	path := v.GetString("env_file")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && path == defaultEnvFile {
			return nil
		}
		return errors.Wrapf(err, "env file %s", path)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read env file %s", path)
	}
	return nil
}

// Validate checks the configuration is usable and reports every problem
// found, not just the first.
func (c *Config) Validate() error {
	var result *multierror.Error
	if !c.DryRun && c.MongoURI == "" && (c.DBUsername == "" || c.DBPassword == "") {
		result = multierror.Append(result, ErrMissingCredentials)
	}
	if c.Date != "" {
		if _, err := time.Parse("20060102", c.Date); err != nil {
			result = multierror.Append(result, errors.Errorf("invalid date %q, want YYYYMMDD", c.Date))
		}
	}
	if c.HTTPTimeout <= 0 {
		result = multierror.Append(result, errors.New("http_timeout must be positive"))
	}
	if c.MongoTimeout <= 0 {
		result = multierror.Append(result, errors.New("mongo_timeout must be positive"))
	}
	return result.ErrorOrNil()
}
