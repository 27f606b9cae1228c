// Command carfob provisions Car and Fob memory images.
//
// Usage:
//
//	carfob <command> [flags]
//
// Commands:
//
//	secrets  Generate car, fob and manufacturer identities
//	car      Build a Car memory image
//	fob      Build a Fob memory image, optionally paired to a car
//	feature  Issue a signed feature token for a car
//	enable   Install a feature token into a fob image
//	inspect  Show the slots of a memory image
//	log      View the provisioning audit log
//
// Examples:
//
//	# Generate identities into ./secrets
//	carfob secrets -dir secrets
//
//	# Build a car image for car 0x00000001
//	carfob car -car-id 1 -out car.eeprom
//
//	# Build a paired fob, prompting for the PIN
//	carfob fob -car-id 1 -out fob.eeprom
//
//	# Issue feature 2 and install it
//	carfob feature -car-id 1 -slot 2 -out feat2.bin
//	carfob enable -image fob.eeprom -token feat2.bin -out fob2.eeprom
//
//	# Inspect an image
//	carfob inspect -role fob fob2.eeprom
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/carfob/carfob-go/cmd/carfob/commands"
	"github.com/carfob/carfob-go/pkg/config"
)

const usage = `carfob - Car/Fob provisioning tool

Usage:
  carfob <command> [flags]

Commands:
  secrets  Generate car, fob and manufacturer identities
  car      Build a Car memory image
  fob      Build a Fob memory image, optionally paired to a car
  feature  Issue a signed feature token for a car
  enable   Install a feature token into a fob image
  inspect  Show the slots of a memory image
  log      View the provisioning audit log

Use "carfob <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "secrets":
		runSecrets(args)
	case "car":
		runCar(args)
	case "fob":
		runFob(args)
	case "feature":
		runFeature(args)
	case "enable":
		runEnable(args)
	case "inspect":
		runInspect(args)
	case "log":
		runLog(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// commonFlags are accepted by every build command.
type commonFlags struct {
	config   *string
	secrets  *string
	fill     *string
	audit    *string
	registry *string
	verbose  *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:   fs.String("config", "", "YAML config file"),
		secrets:  fs.String("secrets", "", "Secrets directory (overrides config)"),
		fill:     fs.String("fill", "", "Fill byte, e.g. 0xFF (overrides config)"),
		audit:    fs.String("audit", "", "Audit log file (overrides config)"),
		registry: fs.String("registry", "", "SQLite registry (overrides config)"),
		verbose:  fs.Bool("v", false, "Enable debug logging"),
	}
}

// openEnv loads the config, applies flag overrides and opens the sinks.
func (c *commonFlags) openEnv() *commands.Env {
	cfg, err := config.Load(*c.config)
	if err != nil {
		fatal(err)
	}

	if *c.secrets != "" {
		cfg.SecretsDir = *c.secrets
	}
	if *c.fill != "" {
		fb, err := config.ParseFillByte(*c.fill)
		if err != nil {
			fatal(err)
		}
		cfg.FillByte = fb
	}
	if *c.audit != "" {
		cfg.AuditLog = *c.audit
	}
	if *c.registry != "" {
		cfg.Registry = *c.registry
	}
	if *c.verbose {
		cfg.LogLevel = "debug"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	env, err := commands.NewEnv(cfg, logger, nil)
	if err != nil {
		fatal(err)
	}
	return env
}

// run opens the environment, calls fn and closes the environment before
// any error is reported.
func (c *commonFlags) run(fn func(env *commands.Env) error) {
	if err := runWithEnv(c.openEnv(), fn); err != nil {
		fatal(err)
	}
}

func runWithEnv(env *commands.Env, fn func(env *commands.Env) error) error {
	err := fn(env)
	if closeErr := env.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

func newFlagSet(name, synopsis, usageLine string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "carfob %s - %s\n\nUsage:\n  %s\n\nFlags:\n", name, synopsis, usageLine)
		fs.PrintDefaults()
	}
	return fs
}

func runSecrets(args []string) {
	fs := newFlagSet("secrets", "Generate identities", "carfob secrets [flags]")
	dir := fs.String("dir", "", "Secrets directory (same as -secrets)")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *dir != "" {
		*common.secrets = *dir
	}

	common.run(func(env *commands.Env) error {
		return commands.RunSecrets(env, os.Stdout)
	})
}

func runCar(args []string) {
	fs := newFlagSet("car", "Build a Car memory image", "carfob car -car-id <hex> -out <file> [flags]")
	carID := fs.String("car-id", "", "Car ID in hex (required)")
	out := fs.String("out", "", "Output image file (required)")
	var msgs slotFiles
	fs.Var(&msgs, "msg", "Message slot content as SLOT=file, e.g. MSG_UNLOCK=unlock.txt (repeatable)")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *carID == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -car-id and -out are required")
		fs.Usage()
		os.Exit(1)
	}

	common.run(func(env *commands.Env) error {
		opts := commands.CarOptions{CarID: *carID, Out: *out, Messages: msgs}
		return commands.RunCar(env, opts, os.Stdout)
	})
}

func runFob(args []string) {
	fs := newFlagSet("fob", "Build a Fob memory image", "carfob fob -out <file> [-car-id <hex> [-pin <hex>]] [flags]")
	carID := fs.String("car-id", "", "Pair the fob with this car ID (hex)")
	pin := fs.String("pin", "", "Pairing PIN in hex (prompted when omitted)")
	out := fs.String("out", "", "Output image file (required)")
	var tokens multiFlag
	fs.Var(&tokens, "token", "Packaged feature file to install (repeatable)")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -out is required")
		fs.Usage()
		os.Exit(1)
	}

	common.run(func(env *commands.Env) error {
		opts := commands.FobOptions{
			CarID:     *carID,
			PIN:       *pin,
			Out:       *out,
			Tokens:    tokens,
			PromptPIN: promptPIN,
		}
		return commands.RunFob(env, opts, os.Stdout)
	})
}

func runFeature(args []string) {
	fs := newFlagSet("feature", "Issue a feature token", "carfob feature -car-id <hex> -slot <1-3> -out <file> [flags]")
	carID := fs.String("car-id", "", "Car ID in hex (required)")
	slot := fs.Int("slot", 0, "Feature slot 1-3 (required)")
	out := fs.String("out", "", "Output package file (required)")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *carID == "" || *out == "" || *slot == 0 {
		fmt.Fprintln(os.Stderr, "Error: -car-id, -slot and -out are required")
		fs.Usage()
		os.Exit(1)
	}

	common.run(func(env *commands.Env) error {
		opts := commands.FeatureOptions{CarID: *carID, Slot: *slot, Out: *out}
		return commands.RunFeature(env, opts, os.Stdout)
	})
}

func runEnable(args []string) {
	fs := newFlagSet("enable", "Install a feature into a fob image", "carfob enable -image <file> -token <file> -out <file> [flags]")
	image := fs.String("image", "", "Existing fob image (required)")
	token := fs.String("token", "", "Packaged feature file (required)")
	out := fs.String("out", "", "Output image file (required)")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *image == "" || *token == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -image, -token and -out are required")
		fs.Usage()
		os.Exit(1)
	}

	common.run(func(env *commands.Env) error {
		opts := commands.EnableOptions{Image: *image, Token: *token, Out: *out}
		return commands.RunEnable(env, opts, os.Stdout)
	})
}

func runInspect(args []string) {
	fs := newFlagSet("inspect", "Show the slots of a memory image", "carfob inspect -role car|fob [flags] <file>")
	role := fs.String("role", "", "Image role: car or fob (required)")
	asJSON := fs.Bool("json", false, "Print JSON")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *role == "" || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: -role and image path required")
		fs.Usage()
		os.Exit(1)
	}

	common.run(func(env *commands.Env) error {
		opts := commands.InspectOptions{Role: *role, JSON: *asJSON}
		return commands.RunInspect(env, fs.Arg(0), opts, os.Stdout)
	})
}

func runLog(args []string) {
	if len(args) < 1 || args[0] != "view" {
		fmt.Fprintln(os.Stderr, "Usage: carfob log view [flags] <file.plog>")
		os.Exit(1)
	}

	fs := newFlagSet("log view", "View the audit log", "carfob log view [flags] <file.plog>")
	buildID := fs.String("build", "", "Filter by build ID")
	role := fs.String("role", "", "Filter by role (car, fob)")
	carID := fs.String("car-id", "", "Filter by car ID (8 hex digits)")
	category := fs.String("category", "", "Filter by category (key, pairing, token, image, error)")
	timeStart := fs.String("time-start", "", "Filter events at or after this time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter events before this time (RFC3339)")

	if err := fs.Parse(args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.ViewOptions{
		BuildID:   *buildID,
		Role:      *role,
		CarID:     *carID,
		Category:  *category,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
	}
	if err := commands.RunView(fs.Arg(0), opts, os.Stdout); err != nil {
		fatal(err)
	}
}

// promptPIN reads the pairing PIN without echo.
func promptPIN() (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "PIN: ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	pin, err := rl.ReadPassword("PIN: ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pin)), nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// multiFlag collects repeated string flags.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// slotFiles collects repeated SLOT=file flags.
type slotFiles map[string]string

func (s *slotFiles) String() string {
	var parts []string
	for k, v := range *s {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (s *slotFiles) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected SLOT=file, got %q", v)
	}
	if *s == nil {
		*s = make(slotFiles)
	}
	(*s)[strings.ToUpper(name)] = path
	return nil
}
