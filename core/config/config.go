package config

import (
	"crypto/subtle"
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	PrivateKeyName    = "host_key"
	AppLogName        = "app.log"
)

// Configuration holds the host-tunable settings for the engine, the
// interactive shell, and the SSH server.
type Configuration struct {
	configFs afero.Fs

	Prompt      string `json:"prompt"`
	HistoryFile string `json:"history_file"`

	Shell Shell `json:"shell"`
	SSH   SSH   `json:"ssh"`

	Users []User `json:"users" validate:"unique=Username,dive"`
}

type Shell struct {
	DefaultShell   string `json:"default_shell" validate:"required"`
	SourcingPolicy string `json:"sourcing_policy" validate:"oneof=exec shell"`
	CaptureLimit   int    `json:"capture_limit" validate:"gt=0"`
}

type SSH struct {
	Port           int     `json:"port" validate:"gte=0,lte=65535"`
	Banner         string  `json:"banner"`
	ConnsPerSecond float64 `json:"conns_per_second" validate:"gt=0"`
}

type User struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_RDONLY, 0600)
}

// PrivateKeyPem returns the bytes of the SSH host key.
func (c *Configuration) PrivateKeyPem() ([]byte, error) {
	return afero.ReadFile(c.fs(), PrivateKeyName)
}

// HostKeySigner parses the SSH host key into a signer for the server.
func (c *Configuration) HostKeySigner() (ssh.Signer, error) {
	pemBytes, err := c.PrivateKeyPem()
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(pemBytes)
}

// CheckPassword reports whether username/password matches a configured
// user.
func (c *Configuration) CheckPassword(username, password string) bool {
	ok := false
	for _, u := range c.Users {
		if u.Username == username &&
			subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1 {
			ok = true
		}
	}
	return ok
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
