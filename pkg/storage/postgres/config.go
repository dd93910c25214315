package postgres

import (
	"fmt"
	"strings"
)

type Config struct {
	User     string `toml:"user"`
	Password string `toml:"-"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	DBName   string `toml:"dbName"`
}

func (c *Config) ConString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.DBName)
}

// String masks the password so the config can be logged.
func (c Config) String() string {
	c.Password = strings.Repeat("*", len([]rune(c.Password)))

	return fmt.Sprintf("%#v", c)
}

func (c *Config) IsValid() bool {
	if c.User == "" || c.Password == "" || c.Host == "" || c.Port == "" || c.DBName == "" {
		return false
	}
	return true
}
