package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	booleanFlagTypeName     = "bool"
	booleanFlagTrueLiteral  = "true"
	booleanFlagAcceptedList = "true, false, yes, no, on, off, 1, 0"
	invalidBooleanFormat    = "invalid boolean value %q for --%s; accepted values: %s"
	flagPrefix              = "--"
	flagTerminator          = "--"
)

var booleanFlagLiterals = map[string]bool{
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

// booleanFlagValue accepts yes/no and on/off spellings in addition to true/false.
type booleanFlagValue struct {
	target *bool
	name   string
}

func parseBooleanLiteral(input string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return true, true
	}
	parsed, ok := booleanFlagLiterals[normalized]
	return parsed, ok
}

func (value *booleanFlagValue) Set(input string) error {
	parsed, ok := parseBooleanLiteral(input)
	if !ok || value.target == nil {
		return fmt.Errorf(invalidBooleanFormat, input, value.name, booleanFlagAcceptedList)
	}
	*value.target = parsed
	return nil
}

func (value *booleanFlagValue) String() string {
	if value.target == nil {
		return booleanFlagTrueLiteral
	}
	return strconv.FormatBool(*value.target)
}

func (value *booleanFlagValue) Type() string {
	return booleanFlagTypeName
}

// registerBooleanFlag adds a tolerant boolean flag. A bare --name means true.
func registerBooleanFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || target == nil {
		return
	}
	*target = defaultValue
	flag := flagSet.VarPF(&booleanFlagValue{target: target, name: name}, name, "", usage)
	flag.DefValue = strconv.FormatBool(defaultValue)
	flag.NoOptDefVal = booleanFlagTrueLiteral
}

// normalizeBooleanFlagArguments joins "--name value" into "--name=value" when
// name is a boolean flag and value is a boolean literal, so that
// "--force yes" is not read as a positional argument.
func normalizeBooleanFlagArguments(command *cobra.Command, arguments []string) []string {
	booleanFlags := map[string]struct{}{}
	collectBooleanFlagNames(command, booleanFlags)
	if len(booleanFlags) == 0 {
		return arguments
	}
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == flagTerminator {
			return append(normalized, arguments[index:]...)
		}
		if joined, ok := joinBooleanValue(booleanFlags, argument, arguments[index+1:]); ok {
			normalized = append(normalized, joined)
			index++
			continue
		}
		normalized = append(normalized, argument)
	}
	return normalized
}

func joinBooleanValue(booleanFlags map[string]struct{}, argument string, rest []string) (string, bool) {
	if len(rest) == 0 || !strings.HasPrefix(argument, flagPrefix) || strings.Contains(argument, "=") {
		return "", false
	}
	name := strings.TrimPrefix(argument, flagPrefix)
	if _, isBoolean := booleanFlags[name]; !isBoolean || strings.HasPrefix(rest[0], "-") {
		return "", false
	}
	if _, valid := booleanFlagLiterals[strings.ToLower(strings.TrimSpace(rest[0]))]; !valid {
		return "", false
	}
	return argument + "=" + rest[0], true
}

func collectBooleanFlagNames(command *cobra.Command, target map[string]struct{}) {
	if command == nil {
		return
	}
	visit := func(flag *pflag.Flag) {
		if flag.Value != nil && flag.Value.Type() == booleanFlagTypeName {
			target[flag.Name] = struct{}{}
		}
	}
	command.PersistentFlags().VisitAll(visit)
	command.Flags().VisitAll(visit)
	for _, child := range command.Commands() {
		collectBooleanFlagNames(child, target)
	}
}
