/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package cmdutil resolves startup parameters from either a command line
// flag or its companion environment variable, the flag taking precedence.
package cmdutil

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// GetOptionalString returns the value of the flag or environment variable,
// or "" when neither is set.
func GetOptionalString(cmd *cobra.Command, flagName, envKey string) string {
	v, _ := GetString(cmd, flagName, envKey, true)

	return v
}

// GetString returns the value of the flag or environment variable. When
// isOptional is false, an unset or empty value is an error.
func GetString(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf("%s flag not found: %w", flagName, err)
		}

		if value == "" {
			return "", fmt.Errorf("%s value is empty", flagName)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		if !isOptional && value == "" {
			return "", fmt.Errorf("%s value is empty", envKey)
		}

		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

// GetOptionalStringArray returns the values of the (repeatable) flag, or the
// comma-separated values of the environment variable, or nil when neither is
// set.
func GetOptionalStringArray(cmd *cobra.Command, flagName, envKey string) []string {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringArray(flagName)
		if err != nil {
			return nil
		}

		return value
	}

	value := os.Getenv(envKey)
	if value == "" {
		return nil
	}

	return strings.Split(value, ",")
}

// GetBool returns the boolean value of the flag or environment variable,
// or defaultValue when neither is set.
func GetBool(cmd *cobra.Command, flagName, envKey string, defaultValue bool) (bool, error) {
	str, err := GetString(cmd, flagName, envKey, true)
	if err != nil {
		return false, fmt.Errorf("%s: %w", flagName, err)
	}

	if str == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s [%s]: %w", flagName, str, err)
	}

	return value, nil
}

// GetDuration returns the duration value of the flag or environment
// variable, or defaultDuration when neither is set.
func GetDuration(cmd *cobra.Command, flagName, envKey string, defaultDuration time.Duration) (time.Duration, error) {
	str, err := GetString(cmd, flagName, envKey, true)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", flagName, err)
	}

	if str == "" {
		return defaultDuration, nil
	}

	value, err := time.ParseDuration(str)
	if err != nil {
		return -1, fmt.Errorf("invalid value for %s [%s]: %w", flagName, str, err)
	}

	return value, nil
}

// GetInt returns the integer value of the flag or environment variable, or
// defaultValue when neither is set.
func GetInt(cmd *cobra.Command, flagName, envKey string, defaultValue int) (int, error) {
	str, err := GetString(cmd, flagName, envKey, true)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flagName, err)
	}

	if str == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s [%s]: %w", flagName, str, err)
	}

	return value, nil
}
