package config

import "errors"

// ErrConfigMissing is returned when the named config file does not exist.
var ErrConfigMissing = errors.New("config: file missing")

// ErrConfigParse wraps a viper/mapstructure failure while decoding the file.
var ErrConfigParse = errors.New("config: parse error")
