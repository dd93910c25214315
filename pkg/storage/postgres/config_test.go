package postgres

import (
	"strings"
	"testing"
)

func TestConfig_isValid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{
			name: "valid config",
			cfg: Config{
				User:     "user",
				Password: "password",
				Host:     "localhost",
				Port:     "5432",
				DBName:   "blogicum",
			},
			want: true,
		},
		{
			name: "empty config",
			cfg:  Config{},
			want: false,
		},
		{
			name: "config with empty DBName",
			cfg: Config{
				User:     "user",
				Password: "password",
				Host:     "localhost",
				Port:     "5432",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsValid(); got != tt.want {
				t.Errorf("Config.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Config{User: "user", Password: "secret", Host: "localhost", Port: "5432", DBName: "blogicum"}

	s := cfg.String()
	if strings.Contains(s, "secret") {
		t.Errorf("want password masked, got %s", s)
	}
	if !strings.Contains(s, "******") {
		t.Errorf("want masked password of the same length, got %s", s)
	}
	if cfg.Password != "secret" {
		t.Errorf("String() must not modify the config")
	}
}

func TestConfig_ConString(t *testing.T) {
	cfg := Config{User: "user", Password: "pass", Host: "db", Port: "5432", DBName: "blogicum"}

	want := "postgres://user:pass@db:5432/blogicum"
	if got := cfg.ConString(); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}
