// Package config defines the server configuration and its YAML file
// form. Values load from a file when one is given; CLI flags override
// file values; everything has a workable default.
package config
