package conn

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// Option defines connection options for PostgreSQL.
type Option struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	ConnTimeout time.Duration
	Params      map[string]string
	ConnString  string
	Config      *gorm.Config
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	opt Option
	db  *gorm.DB
}

// New creates a PostgreSQL client from the provided options.
func New(option Option) (*Client, error) {
	db, err := gorm.Open(postgres.Open(option.dsn()), option.gormConfig())
	if err != nil {
		return nil, err
	}

	return &Client{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt Option) gormConfig() *gorm.Config {
	if opt.Config != nil {
		return opt.Config
	}
	return &gorm.Config{}
}

// dsn builds a keyword/value connection string, e.g.
// "host=localhost port=5432 user=mm dbname=trades sslmode=disable".
func (opt Option) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	kv := map[string]string{
		"host":    defaultPostgresHost,
		"port":    fmt.Sprintf("%d", defaultPostgresPort),
		"sslmode": defaultPostgresSSLMode,
	}
	if opt.Host != "" {
		kv["host"] = opt.Host
	}
	if opt.Port != 0 {
		kv["port"] = fmt.Sprintf("%d", opt.Port)
	}
	if opt.SSLMode != "" {
		kv["sslmode"] = opt.SSLMode
	}
	if opt.User != "" {
		kv["user"] = opt.User
	}
	if opt.Password != "" {
		kv["password"] = opt.Password
	}
	if opt.Database != "" {
		kv["dbname"] = opt.Database
	}
	if opt.ConnTimeout > 0 {
		kv["connect_timeout"] = fmt.Sprintf("%d", int(opt.ConnTimeout.Seconds()))
	}
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		kv[key] = value
	}

	keys := make([]string, 0, len(kv))
	for key := range kv {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kv[key])
	}
	return b.String()
}
