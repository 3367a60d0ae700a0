package config

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gql2sql/internal/pg"
	"gql2sql/internal/registrar"
	"gql2sql/internal/schema"
)

type Config struct {
	SchemaPath string `json:"schemaPath"` // schema file or directory (.dsl, .graphql)
	Engine     string `json:"engine"`
	TypesFile  string `json:"typesFile"` // overrides the embedded type table
	DBSchema   string `json:"dbSchema"`

	// Database. DBURL wins over the PG* parts.
	DBURL      string `json:"dbUrl"`
	PGHost     string `json:"pgHost"`
	PGPort     int    `json:"pgPort"`
	PGUser     string `json:"pgUser"`
	PGPassword string `json:"pgPassword"`
	PGDatabase string `json:"pgDatabase"`
	PGSSLMode  string `json:"pgSslMode"`

	Apply bool   `json:"apply"` // execute the DDL against the database
	Out   string `json:"out"`   // write the DDL script here; "-" = stdout

	Serve bool   `json:"serve"`
	Host  string `json:"host"`
	Port  string `json:"port"`

	Registrar     string `json:"registrar"` // hasura | postgraphile | none
	HasuraURL     string `json:"hasuraUrl"`
	HasuraSecret  string `json:"hasuraSecret"`
	HasuraRetries int    `json:"hasuraRetries"`

	AllowOneToMany     bool `json:"allowOneToMany"`
	ReverseForOneSided bool `json:"reverseForOneSided"`
	OmitJunctions      bool `json:"omitJunctions"`
	SkipExtensions     bool `json:"skipExtensions"`
	SkipTriggers       bool `json:"skipTriggers"`
	SkipLookups        bool `json:"skipLookups"`

	LogLevel string        `json:"logLevel"`
	Timeout  time.Duration `json:"-"`
}

func def() Config {
	return Config{
		SchemaPath: "schema",
		Engine:     "postgres",
		DBSchema:   "public",

		PGHost:    "localhost",
		PGPort:    5432,
		PGUser:    "postgres",
		PGSSLMode: "disable",

		Host: "0.0.0.0",
		Port: "8080",

		Registrar:     registrar.FlavorNone,
		HasuraRetries: 3,

		LogLevel: "info",
		Timeout:  30 * time.Second,
	}
}

// jsonConfig carries fields whose JSON form differs from the struct.
type jsonConfig struct {
	Config
	Timeout string `json:"timeout"`
}

func loadJSON(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	jc := jsonConfig{Config: base}
	if err := json.Unmarshal(b, &jc); err != nil {
		return base, schema.NewConfigError("config", path, err.Error())
	}
	c := jc.Config
	if jc.Timeout != "" {
		d, err := time.ParseDuration(jc.Timeout)
		if err != nil {
			return base, schema.NewConfigError("timeout", jc.Timeout, "not a duration")
		}
		c.Timeout = d
	}
	return c, nil
}

// DotEnv loads .env style files into the environment. Missing files are
// ignored; variables already set are kept.
func DotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return schema.NewConfigError("dotenv", f, err.Error())
		}
	}
	return nil
}

func getenv(fallback string, keys ...string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func getenvInt(fallback int, keys ...string) int {
	v := getenv("", keys...)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func applyEnv(cfg *Config) {
	cfg.SchemaPath = getenv(cfg.SchemaPath, "GQL2SQL_SCHEMA", "SCHEMA_PATH")
	cfg.Engine = getenv(cfg.Engine, "GQL2SQL_ENGINE")
	cfg.TypesFile = getenv(cfg.TypesFile, "GQL2SQL_TYPES_FILE")
	cfg.DBSchema = getenv(cfg.DBSchema, "GQL2SQL_DB_SCHEMA", "DB_SCHEMA")

	cfg.DBURL = getenv(cfg.DBURL, "GQL2SQL_DB_URL", "DATABASE_URL")
	cfg.PGHost = getenv(cfg.PGHost, "PG_HOST")
	cfg.PGPort = getenvInt(cfg.PGPort, "PG_PORT")
	cfg.PGUser = getenv(cfg.PGUser, "PG_USER")
	cfg.PGPassword = getenv(cfg.PGPassword, "PG_PASSWORD")
	cfg.PGDatabase = getenv(cfg.PGDatabase, "PG_DATABASE")
	cfg.PGSSLMode = getenv(cfg.PGSSLMode, "PG_SSLMODE")

	cfg.Apply = getenvBool("GQL2SQL_APPLY", cfg.Apply)
	cfg.Out = getenv(cfg.Out, "GQL2SQL_OUT")
	cfg.Serve = getenvBool("GQL2SQL_SERVE", cfg.Serve)
	cfg.Host = getenv(cfg.Host, "GQL2SQL_HOST")
	cfg.Port = getenv(cfg.Port, "GQL2SQL_PORT")

	cfg.Registrar = getenv(cfg.Registrar, "GQL2SQL_REGISTRAR")
	cfg.HasuraURL = getenv(cfg.HasuraURL, "GQL2SQL_HASURA_URL", "HASURA_API_ENDPOINT")
	cfg.HasuraSecret = getenv(cfg.HasuraSecret, "GQL2SQL_HASURA_SECRET", "HASURA_GRAPHQL_ADMIN_SECRET", "HASURA_GRAPHQL_ACCESS_KEY")
	cfg.HasuraRetries = getenvInt(cfg.HasuraRetries, "GQL2SQL_HASURA_RETRIES")

	cfg.AllowOneToMany = getenvBool("GQL2SQL_ALLOW_ONE_TO_MANY", cfg.AllowOneToMany)
	cfg.ReverseForOneSided = getenvBool("GQL2SQL_REVERSE_ONE_SIDED", cfg.ReverseForOneSided)
	cfg.OmitJunctions = getenvBool("GQL2SQL_OMIT_JUNCTIONS", cfg.OmitJunctions)
	cfg.SkipExtensions = getenvBool("GQL2SQL_SKIP_EXTENSIONS", cfg.SkipExtensions)
	cfg.SkipTriggers = getenvBool("GQL2SQL_SKIP_TRIGGERS", cfg.SkipTriggers)
	cfg.SkipLookups = getenvBool("GQL2SQL_SKIP_LOOKUPS", cfg.SkipLookups)

	cfg.LogLevel = getenv(cfg.LogLevel, "GQL2SQL_LOG_LEVEL")
	if v := getenv("", "GQL2SQL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
}

// LoadWithPath reads the JSON file at jsonPath (if present), then applies
// the environment and finally args. A -config flag naming another file
// restarts the chain from that file.
func LoadWithPath(jsonPath string, args []string) (Config, error) {
	cfg := def()

	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		c2, err := loadJSON(jsonPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = c2
	}

	applyEnv(&cfg)

	fset := flag.NewFlagSet("gql2sql", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	configPath := fset.String("config", jsonPath, "Path to config JSON")
	fset.StringVar(&cfg.SchemaPath, "schemaPath", cfg.SchemaPath, "Schema file or directory")
	fset.StringVar(&cfg.Engine, "engine", cfg.Engine, "Target engine type table")
	fset.StringVar(&cfg.TypesFile, "types", cfg.TypesFile, "YAML type table overriding the engine default")
	fset.StringVar(&cfg.DBSchema, "dbSchema", cfg.DBSchema, "Database schema")
	fset.StringVar(&cfg.DBURL, "db", cfg.DBURL, "Postgres URL (overrides PG_*)")
	fset.BoolVar(&cfg.Apply, "apply", cfg.Apply, "Apply the DDL to the database")
	fset.StringVar(&cfg.Out, "out", cfg.Out, "Write the DDL script to a file (- for stdout)")
	fset.BoolVar(&cfg.Serve, "serve", cfg.Serve, "Serve the metadata API")
	fset.StringVar(&cfg.Host, "host", cfg.Host, "HTTP host")
	fset.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fset.StringVar(&cfg.Registrar, "registrar", cfg.Registrar, "Metadata registrar (hasura/postgraphile/none)")
	fset.StringVar(&cfg.HasuraURL, "hasura", cfg.HasuraURL, "Hasura endpoint")
	fset.IntVar(&cfg.HasuraRetries, "hasura-retries", cfg.HasuraRetries, "Hasura retries on transport errors and 5xx")
	fset.BoolVar(&cfg.AllowOneToMany, "allow-one-to-many", cfg.AllowOneToMany, "Resolve list/to-one pairs as foreign keys")
	fset.BoolVar(&cfg.ReverseForOneSided, "reverse-one-sided", cfg.ReverseForOneSided, "Expose reverse names for one-sided foreign keys")
	fset.BoolVar(&cfg.OmitJunctions, "omit-junctions", cfg.OmitJunctions, "Hide junction tables from Postgraphile")
	fset.BoolVar(&cfg.SkipExtensions, "skip-extensions", cfg.SkipExtensions, "Do not create extensions")
	fset.BoolVar(&cfg.SkipTriggers, "skip-triggers", cfg.SkipTriggers, "Do not create updated_at triggers")
	fset.BoolVar(&cfg.SkipLookups, "skip-lookups", cfg.SkipLookups, "Do not create junction lookup functions")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fset.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout for database and registrar work")

	if err := fset.Parse(args); err != nil {
		return cfg, schema.NewConfigError("flags", strings.Join(args, " "), err.Error())
	}

	if *configPath != jsonPath {
		return LoadWithPath(*configPath, args)
	}

	cfg.SchemaPath = strings.TrimSpace(cfg.SchemaPath)
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	cfg.Registrar = strings.ToLower(strings.TrimSpace(cfg.Registrar))
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.SchemaPath == "" {
		return schema.NewConfigError("schemaPath", c.SchemaPath, "schema path is required")
	}
	if c.Apply && c.DSN() == "" {
		return schema.NewConfigError("apply", true, "applying needs a database (db or PG_DATABASE)")
	}
	if c.Registrar == registrar.FlavorPostgraphile && c.DSN() == "" {
		return schema.NewConfigError("registrar", c.Registrar, "postgraphile needs a database (db or PG_DATABASE)")
	}
	if c.Timeout <= 0 {
		return schema.NewConfigError("timeout", c.Timeout.String(), "must be positive")
	}
	return nil
}

// DSN is DBURL, or a URL built from the PG* parts when a database name is
// set. Empty means no database.
func (c Config) DSN() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	if c.PGDatabase == "" {
		return ""
	}
	return pg.URL(c.PGHost, c.PGPort, c.PGUser, c.PGPassword, c.PGDatabase, c.PGSSLMode)
}

// Addr is the listen address of the metadata API.
func (c Config) Addr() string { return c.Host + ":" + c.Port }

func (c Config) SchemaOptions() schema.Options {
	return schema.Options{
		AllowOneToMany:     c.AllowOneToMany,
		ReverseForOneSided: c.ReverseForOneSided,
	}
}

func (c Config) DDLOptions() pg.DDLOptions {
	return pg.DDLOptions{
		Schema:         c.DBSchema,
		SkipExtensions: c.SkipExtensions,
		SkipTriggers:   c.SkipTriggers,
		SkipLookups:    c.SkipLookups,
		OmitJunctions:  c.OmitJunctions,
	}
}

func (c Config) RegistrarConfig() registrar.Config {
	return registrar.Config{
		Flavor: c.Registrar,
		Schema: c.DBSchema,
		Hasura: registrar.HasuraConfig{
			Endpoint:    c.HasuraURL,
			AdminSecret: c.HasuraSecret,
			MaxRetries:  c.HasuraRetries,
		},
	}
}
