package mongo

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

// Config describes a MongoDB deployment. User and Pass are optional.
type Config struct {
	Host   string
	Port   string
	DBName string
	User   string
	Pass   string
}

// NewConfig reads the connection parameters from MONGO_* environment variables.
// MONGO_HOST, MONGO_PORT and MONGO_DB_NAME are required.
func NewConfig() (*Config, error) {
	conf := &Config{
		User: os.Getenv("MONGO_USER"),
		Pass: os.Getenv("MONGO_PASS"),
	}
	required := []struct {
		env string
		dst *string
	}{
		{"MONGO_HOST", &conf.Host},
		{"MONGO_PORT", &conf.Port},
		{"MONGO_DB_NAME", &conf.DBName},
	}
	for _, r := range required {
		*r.dst = os.Getenv(r.env)
		if *r.dst == "" {
			return nil, fmt.Errorf("%w: %s", ErrConfParamMissing, r.env)
		}
	}

	return conf, nil
}

// URI returns the connection string. Credentials are only included when both
// are set and are escaped for use in a URL.
func (c *Config) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/",
	}
	if c.User != "" && c.Pass != "" {
		u.User = url.UserPassword(c.User, c.Pass)
	}
	return u.String()
}

func (c *Config) Options() *options.ClientOptions {
	return options.Client().ApplyURI(c.URI())
}

// String masks the password so the config can be logged.
func (c Config) String() string {
	c.Pass = strings.Repeat("*", len([]rune(c.Pass)))

	return fmt.Sprintf("%#v", c)
}
