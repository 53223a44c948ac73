package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := defaultConfig()
	assert.NotNil(t, cfg)
	assert.Nil(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"zero capture limit", func(c *Configuration) { c.Shell.CaptureLimit = 0 }},
		{"bad policy", func(c *Configuration) { c.Shell.SourcingPolicy = "bogus" }},
		{"bad port", func(c *Configuration) { c.SSH.Port = 70000 }},
		{"missing shell", func(c *Configuration) { c.Shell.DefaultShell = "" }},
		{"duplicate users", func(c *Configuration) {
			c.Users = []User{
				{Username: "a", Password: "x"},
				{Username: "a", Password: "y"},
			}
		}},
		{"user missing password", func(c *Configuration) {
			c.Users = []User{{Username: "a"}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCheckPassword(t *testing.T) {
	cfg := &Configuration{
		Users: []User{
			{Username: "admin", Password: "secret"},
			{Username: "dev", Password: "hunter2"},
		},
	}

	assert.True(t, cfg.CheckPassword("admin", "secret"))
	assert.True(t, cfg.CheckPassword("dev", "hunter2"))
	assert.False(t, cfg.CheckPassword("admin", "hunter2"))
	assert.False(t, cfg.CheckPassword("nobody", "secret"))
	assert.False(t, cfg.CheckPassword("admin", ""))
}
