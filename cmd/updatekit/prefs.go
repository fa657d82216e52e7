package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"updatekit/internal/config"
	apperrors "updatekit/internal/errors"
)

type prefKind int

const (
	prefString prefKind = iota
	prefBool
	prefFloat
)

// editablePrefs lists the keys prefs get/set accept. update.last-check is
// owned by the updater and stays read-only.
var editablePrefs = map[string]prefKind{
	config.KeyCheckIntervalSeconds: prefFloat,
	config.KeyAutoCheck:            prefBool,
	config.KeyAutoDownload:         prefBool,
	config.KeyAllowAutomatic:       prefBool,
	config.KeyFeedURL:              prefString,
	config.KeyInstallerCommand:     prefString,
	config.KeyHistoryPath:          prefString,
	config.KeyOutputFormat:         prefString,
	config.KeyServerAddr:           prefString,
}

func newPrefsCmd(env *appEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read or change update preferences",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get [key]",
			Short: "Print one preference, or all of them",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					printAllPrefs(env.out)
					return nil
				}
				return printPref(env.out, args[0])
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a preference and save it to the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := setPref(args[0], args[1]); err != nil {
					return err
				}
				env.log.Info().Str("key", args[0]).Msg("preference saved")
				return printPref(env.out, args[0])
			},
		},
	)
	return cmd
}

func prefKeys() []string {
	keys := make([]string, 0, len(editablePrefs)+1)
	for k := range editablePrefs {
		keys = append(keys, k)
	}
	keys = append(keys, config.KeyLastCheck)
	sort.Strings(keys)
	return keys
}

func printAllPrefs(w io.Writer) {
	for _, key := range prefKeys() {
		_, _ = fmt.Fprintf(w, "%s = %s\n", key, config.GetString(key))
	}
}

func printPref(w io.Writer, key string) error {
	if _, ok := editablePrefs[key]; !ok && key != config.KeyLastCheck {
		return unknownPref(key)
	}
	_, _ = fmt.Fprintf(w, "%s = %s\n", key, config.GetString(key))
	return nil
}

// setPref validates raw against the key's type, applies it and saves it.
func setPref(key, raw string) error {
	kind, ok := editablePrefs[key]
	if !ok {
		if key == config.KeyLastCheck {
			return apperrors.New(apperrors.CodeInvalidArgument, key+" is maintained by the updater", nil)
		}
		return unknownPref(key)
	}

	var value any
	switch kind {
	case prefBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return apperrors.New(apperrors.CodeInvalidArgument, key+" expects true or false", err)
		}
		value = b
	case prefFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return apperrors.New(apperrors.CodeInvalidArgument, key+" expects a number", err)
		}
		value = f
	default:
		value = raw
	}

	if err := config.Set(key, value); err != nil {
		return apperrors.New(apperrors.CodeConfigurationError, "set "+key, err)
	}
	if err := config.SaveKeys(key); err != nil {
		return apperrors.New(apperrors.CodeConfigurationError, "save "+key, err)
	}
	return nil
}

func unknownPref(key string) error {
	return apperrors.New(apperrors.CodeInvalidArgument,
		fmt.Sprintf("unknown preference %q (known: %s)", key, strings.Join(prefKeys(), ", ")), nil)
}
