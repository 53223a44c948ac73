package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize writes a default configuration and a generated SSH host key
// into the directory, skipping files that already exist, then loads the
// result.
func Initialize(path string, logger *log.Logger) (*Configuration, error) {
	return InitializeFs(afero.NewOsFs(), path, logger)
}

// InitializeFs is Initialize on an arbitrary filesystem.
func InitializeFs(fsys afero.Fs, path string, logger *log.Logger) (*Configuration, error) {
	if err := fsys.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	configPath := filepath.Join(path, ConfigurationName)
	if exists, err := afero.Exists(fsys, configPath); err != nil {
		return nil, err
	} else if exists {
		logger.Printf("found existing %s, keeping it", ConfigurationName)
	} else {
		logger.Printf("writing default %s", ConfigurationName)
		if err := afero.WriteFile(fsys, configPath, defaultConfigData, 0600); err != nil {
			return nil, err
		}
	}

	keyPath := filepath.Join(path, PrivateKeyName)
	if exists, err := afero.Exists(fsys, keyPath); err != nil {
		return nil, err
	} else if exists {
		logger.Printf("found existing %s, keeping it", PrivateKeyName)
	} else {
		logger.Printf("generating SSH host key")
		keyPem, err := generateHostKey()
		if err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fsys, keyPath, keyPem, 0600); err != nil {
			return nil, err
		}
	}

	return LoadFs(fsys, path)
}

// generateHostKey creates an ed25519 key in PKCS#8 PEM form, which the
// SSH library parses directly.
func generateHostKey() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil
}
