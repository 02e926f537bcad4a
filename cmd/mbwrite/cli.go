// cmd/mbwrite/cli.go
package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus-rtu-writer/internal/config"
	"github.com/tamzrod/modbus-rtu-writer/internal/logging"
	"github.com/tamzrod/modbus-rtu-writer/internal/status"
	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
	"github.com/tamzrod/modbus-rtu-writer/internal/writer"
)

var errUsage = errors.New("usage")

type options struct {
	port    string
	address int
	kind    string
	unit    int

	configPath string
	logLevel   string
	logOutput  string
}

// cli carries one invocation. exit is set by the command that ran.
type cli struct {
	opts options
	exit int

	stdout io.Writer
	stderr io.Writer

	// replaced in tests
	build     func(*config.Config, *zap.Logger) (*writer.Dispatcher, error)
	listPorts writer.PortLister
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{
		stdout:    stdout,
		stderr:    stderr,
		build:     writer.Build,
		listPorts: transport.ListPorts,
	}
	return c.execute(args)
}

func (c *cli) execute(args []string) int {
	root := c.rootCmd()
	root.SetArgs(liftNegativeValues(root.Flags(), args))
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(c.stderr, "mbwrite: %v\n", err)
		return status.ExitUsage
	}
	return c.exit
}

// ---- commands ----

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mbwrite [flags] VALUE",
		Short: "Write one Modbus RTU coil or holding register",
		Long: `Write a single value to a Modbus RTU slave over a serial line (9600 8N2).

Coil uses function code 05: any nonzero VALUE switches the coil on.
Register uses function code 06: the low 16 bits of VALUE are sent.

Without --port every serial and RS-485 port on the host is tried in turn.
In that mode the exit code is always 1; check the log for per-port results.

VALUE can be decimal, hexadecimal (0x prefix), or binary (0b prefix),
and may be negative.`,
		Example: `  mbwrite -p /dev/ttyUSB0 -a 10 -t Register 42
  mbwrite -p COM3 -a 0 -t coil -u 17 1
  mbwrite -a 100 -t register -1`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runWrite,
	}

	f := cmd.Flags()
	f.StringVarP(&c.opts.port, "port", "p", "", "serial port name (empty: try every serial port)")
	f.IntVarP(&c.opts.address, "address", "a", 0, "coil or register address (0..65535)")
	f.StringVarP(&c.opts.kind, "type", "t", "", "input type: Coil or Register")
	f.IntVarP(&c.opts.unit, "unit", "u", 1, "slave unit id (0..255)")
	f.StringVarP(&c.opts.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&c.opts.logLevel, "log-level", "", "override log.level (debug|info|warn|error)")
	f.StringVar(&c.opts.logOutput, "log-output", "", "override log.output (stderr|stdout|discard|<file>)")

	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("type")

	cmd.AddCommand(c.portsCmd())

	return cmd
}

func (c *cli) portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List host ports and whether autodetect would try them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cands, err := c.listPorts()
			if err != nil {
				fmt.Fprintf(c.stderr, "mbwrite: %v\n", err)
				c.exit = status.ExitFailure
				return nil
			}
			printPorts(cmd.OutOrStdout(), cands)
			c.exit = status.ExitSuccess
			return nil
		},
	}
}

func (c *cli) runWrite(cmd *cobra.Command, args []string) error {
	req, err := c.request(args[0])
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	d, err := c.build(cfg, logger)
	if err != nil {
		return err
	}

	c.exit, _ = d.Run(req, writer.Explicit(c.opts.port))
	return nil
}

// ---- input ----

var negativeNumber = regexp.MustCompile(`^-[0-9]`)

// liftNegativeValues moves negative numbers that are not flag values behind
// "--" so they parse as VALUE instead of unknown shorthand flags.
func liftNegativeValues(fs *pflag.FlagSet, args []string) []string {
	var flags, values []string

scan:
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			values = append(values, args[i+1:]...)
			break scan
		case negativeNumber.MatchString(a):
			values = append(values, a)
		default:
			flags = append(flags, a)
			if takesValue(fs, a) && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		}
	}

	if len(values) == 0 {
		return flags
	}
	return append(append(flags, "--"), values...)
}

// takesValue reports whether a is a flag whose value is the next argument.
func takesValue(fs *pflag.FlagSet, a string) bool {
	var f *pflag.Flag
	switch {
	case strings.HasPrefix(a, "--"):
		if strings.Contains(a, "=") {
			return false
		}
		f = fs.Lookup(a[2:])
	case len(a) == 2 && a[0] == '-':
		f = fs.ShorthandLookup(a[1:])
	default:
		return false
	}
	return f != nil && f.NoOptDefVal == ""
}

func (c *cli) request(raw string) (writer.WriteRequest, error) {
	o := c.opts

	if o.address < 0 || o.address > math.MaxUint16 {
		return writer.WriteRequest{}, fmt.Errorf("%w: address %d out of range 0..65535", errUsage, o.address)
	}
	if o.unit < 0 || o.unit > math.MaxUint8 {
		return writer.WriteRequest{}, fmt.Errorf("%w: unit %d out of range 0..255", errUsage, o.unit)
	}

	kind, err := writer.ParseKind(o.kind)
	if err != nil {
		return writer.WriteRequest{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	value, err := parseValue(raw)
	if err != nil {
		return writer.WriteRequest{}, err
	}

	return writer.WriteRequest{
		Address: uint16(o.address),
		Kind:    kind,
		UnitID:  uint8(o.unit),
		Value:   value,
	}, nil
}

func parseValue(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q is not a 32-bit integer", errUsage, s)
	}
	return int32(v), nil
}

// loadConfig runs Load -> overrides -> Validate -> Normalize.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.opts.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = c.opts.logLevel
	}
	if cmd.Flags().Changed("log-output") {
		cfg.Log.Output = c.opts.logOutput
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)

	return cfg, nil
}

// ---- output ----

func printPorts(w io.Writer, cands []transport.Candidate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tAUTO\tUSB\tSERIAL\tPRODUCT")

	for _, p := range cands {
		auto := "no"
		if p.Eligible() {
			auto = "yes"
		}
		usb := "-"
		if p.IsUSB {
			usb = p.VID + ":" + p.PID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name, p.Kind, auto, usb, dash(p.SerialNumber), dash(p.Product))
	}

	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
