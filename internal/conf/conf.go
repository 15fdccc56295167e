// Package conf contains the struct that holds the configuration of the software.
package conf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/a10y/camerars/internal/conf/env"
	"github.com/a10y/camerars/internal/conf/yamlwrapper"
	"github.com/a10y/camerars/internal/logger"
)

func firstThatExists(paths []string) string {
	for _, pa := range paths {
		_, err := os.Stat(pa)
		if err == nil {
			return pa
		}
	}
	return ""
}

// S3 is the s3 section of the configuration.
// Its environment contract follows the standard AWS variable names.
type S3 struct {
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
}

// Conf is a configuration.
type Conf struct {
	// General
	LogLevel        LogLevel        `json:"logLevel"`
	LogDestinations LogDestinations `json:"logDestinations"`
	LogFile         string          `json:"logFile"`
	LogStructured   bool            `json:"logStructured"`

	// Recording
	RecordingsDir string   `json:"recordingsDir"`
	IndexPath     string   `json:"indexPath"`
	RollDuration  Duration `json:"rollDuration"`

	// Upload
	UploadQueueSize int `json:"uploadQueueSize"`
	UploadAttempts  int `json:"uploadAttempts"`
	S3              S3  `json:"s3"`

	// Playback server
	HTTPAddress string   `json:"httpAddress"`
	ReadTimeout Duration `json:"readTimeout"`
}

func (conf *Conf) setDefaults() {
	// General
	conf.LogLevel = LogLevel(logger.Info)
	conf.LogDestinations = LogDestinations{logger.DestinationStdout}
	conf.LogFile = "camerars.log"

	// Recording
	conf.RecordingsDir = "recordings"
	conf.IndexPath = "v0.db"
	conf.RollDuration = 10 * Duration(time.Second)

	// Upload
	conf.UploadQueueSize = 1024
	conf.UploadAttempts = 10
	conf.S3.Endpoint = "s3.amazonaws.com"

	// Playback server
	conf.HTTPAddress = "127.0.0.1:3030"
	conf.ReadTimeout = 10 * Duration(time.Second)
}

// Load loads the configuration from file and environment.
func Load(fpath string, defaultConfPaths []string) (*Conf, string, error) {
	conf := &Conf{}

	// an .env file, if present, populates the environment before it is read
	godotenv.Load() //nolint:errcheck

	fpath, err := conf.loadFromFile(fpath, defaultConfPaths)
	if err != nil {
		return nil, "", err
	}

	err = env.Load("CAMERARS", conf)
	if err != nil {
		return nil, "", err
	}

	// the standard AWS variables take precedence for the s3 section
	err = env.Load("AWS", &conf.S3)
	if err != nil {
		return nil, "", err
	}

	err = conf.Validate()
	if err != nil {
		return nil, "", err
	}

	return conf, fpath, nil
}

func (conf *Conf) loadFromFile(fpath string, defaultConfPaths []string) (string, error) {
	if fpath == "" {
		fpath = firstThatExists(defaultConfPaths)

		// when the configuration file is not explicitly set,
		// it is optional.
		if fpath == "" {
			conf.setDefaults()
			return "", nil
		}
	}

	byts, err := os.ReadFile(fpath)
	if err != nil {
		return "", err
	}

	err = yamlwrapper.Unmarshal(byts, conf)
	if err != nil {
		return "", err
	}

	return fpath, nil
}

// Clone clones the configuration.
func (conf Conf) Clone() *Conf {
	enc, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}

	var dest Conf
	err = json.Unmarshal(enc, &dest)
	if err != nil {
		panic(err)
	}

	return &dest
}

// Validate checks the configuration for errors.
func (conf *Conf) Validate() error {
	if conf.RecordingsDir == "" {
		return fmt.Errorf("'recordingsDir' must not be empty")
	}
	if conf.IndexPath == "" {
		return fmt.Errorf("'indexPath' must not be empty")
	}
	if conf.RollDuration <= 0 {
		return fmt.Errorf("'rollDuration' must be greater than zero")
	}
	if conf.ReadTimeout <= 0 {
		return fmt.Errorf("'readTimeout' must be greater than zero")
	}
	if conf.UploadQueueSize <= 0 {
		return fmt.Errorf("'uploadQueueSize' must be greater than zero")
	}
	if conf.UploadAttempts <= 0 {
		return fmt.Errorf("'uploadAttempts' must be greater than zero")
	}
	if conf.HTTPAddress == "" {
		return fmt.Errorf("'httpAddress' must not be empty")
	}
	if conf.S3.Bucket != "" &&
		(conf.S3.AccessKeyID == "" || conf.S3.SecretAccessKey == "") {
		return fmt.Errorf("'s3.access_key_id' and 's3.secret_access_key' are required when 's3.bucket' is set")
	}

	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (conf *Conf) UnmarshalJSON(b []byte) error {
	conf.setDefaults()

	type alias Conf
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode((*alias)(conf))
}
