// Command pompcli sends and receives pomp messages from the command line,
// for manual protocol testing the way kr.go let a developer poke at krd by
// hand.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/agrinman/pomp/pomp"
	"github.com/agrinman/pomp/transport"
)

func main() {
	color.Output = colorableStdout()

	app := cli.NewApp()
	app.Name = "pompcli"
	app.Usage = "send and dump printf-oriented pomp messages over a socket"
	app.Version = "1.0.0"
	app.ArgsUsage = "<addr> [<addrto>] <msgid> [<fmt> [<args>...]]"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "server, s", Usage: "listen at addr instead of dialing it"},
		cli.BoolFlag{Name: "client, c", Usage: "dial addr as a client (default)"},
		cli.BoolFlag{Name: "udp, u", Usage: "use a connectionless datagram transport"},
		cli.BoolFlag{Name: "dump, d", Usage: "stay connected after sending and print received messages"},
		cli.IntFlag{Name: "timeout, t", Usage: "seconds to wait for a reply (client mode only)"},
		cli.BoolFlag{Name: "quiet, q", Usage: "log errors only"},
		cli.BoolFlag{Name: "verbose, v", Usage: "enable debug logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("pompcli: %s", err))
		os.Exit(1)
	}
}

func colorableStdout() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return colorable.NewNonColorable(os.Stdout)
}

func logLevel(c *cli.Context) logging.Level {
	switch {
	case c.Bool("verbose"):
		return logging.DEBUG
	case c.Bool("quiet"):
		return logging.ERROR
	default:
		return logging.NOTICE
	}
}

type parsedArgs struct {
	addr   *transport.Address
	addrTo *transport.Address
	msgID  uint32
	format string
	fields []string
}

// parseArgs resolves <addr> [<addrto>] <msgid> [<fmt> [<args>...]]. Whether
// the second positional argument is an addrto or the msgid is disambiguated
// by trying to parse it as a uint32 first: msgid is always numeric, while an
// address always carries a "scheme:" prefix.
func parseArgs(args cli.Args) (*parsedArgs, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("expected <addr> [<addrto>] <msgid> [<fmt> [<args>...]]")
	}

	addr, err := transport.ParseAddress(args[0])
	if err != nil {
		return nil, err
	}
	rest := args[1:]

	var addrTo *transport.Address
	if id, err := strconv.ParseUint(rest[0], 0, 32); err == nil {
		p := &parsedArgs{addr: addr, msgID: uint32(id)}
		if len(rest) > 1 {
			p.format = rest[1]
			p.fields = rest[2:]
		}
		return p, nil
	}

	addrTo, err = transport.ParseAddress(rest[0])
	if err != nil {
		return nil, fmt.Errorf("second argument %q is neither a msgid nor an address: %w", rest[0], err)
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("missing msgid after addrto")
	}
	id, err := strconv.ParseUint(rest[1], 0, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid msgid %q: %w", rest[1], err)
	}
	p := &parsedArgs{addr: addr, addrTo: addrTo, msgID: uint32(id)}
	if len(rest) > 2 {
		p.format = rest[2]
		p.fields = rest[3:]
	}
	return p, nil
}

// convArgs converts the CLI's string fields into the typed values
// Message.Write expects, using only the conversion character of each
// '%'-run (flags affect width, not the Go type Write accepts).
func convArgs(format string, fields []string) ([]interface{}, error) {
	var kinds []byte
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		j := i + 1
		for j < len(format) && (format[j] == 'l' || format[j] == 'h') {
			j++
		}
		if j >= len(format) {
			return nil, fmt.Errorf("unterminated %% in format %q", format)
		}
		kinds = append(kinds, format[j])
		i = j
	}
	if len(kinds) != len(fields) {
		return nil, fmt.Errorf("format %q expects %d arguments, got %d", format, len(kinds), len(fields))
	}

	values := make([]interface{}, len(fields))
	for i, k := range kinds {
		field := fields[i]
		switch k {
		case 'd', 'i':
			v, err := strconv.ParseInt(field, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d (%q): %w", i, field, err)
			}
			values[i] = v
		case 'u':
			v, err := strconv.ParseUint(field, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d (%q): %w", i, field, err)
			}
			values[i] = v
		case 'f', 'F', 'e', 'E', 'g', 'G':
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d (%q): %w", i, field, err)
			}
			values[i] = v
		case 's':
			values[i] = field
		case 'p':
			v, err := hex.DecodeString(field)
			if err != nil {
				return nil, fmt.Errorf("argument %d (%q) is not hex: %w", i, field, err)
			}
			values[i] = v
		default:
			return nil, fmt.Errorf("unsupported conversion %%%c", k)
		}
	}
	return values, nil
}

func run(c *cli.Context) error {
	log := transport.SetupLogging(logLevel(c))

	parsed, err := parseArgs(c.Args())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	values, err := convArgs(parsed.format, parsed.fields)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	m := pomp.NewMessage()
	if err := m.Write(parsed.msgID, parsed.format, values...); err != nil {
		return cli.NewExitError(fmt.Sprintf("encoding message: %s", err), 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		cancel()
	}()

	timeout := time.Duration(c.Int("timeout")) * time.Second
	stayConnected := c.Bool("dump")

	switch {
	case c.Bool("udp"):
		return runUDP(ctx, log, parsed, m, timeout, stayConnected)
	case c.Bool("server"):
		return runServer(ctx, log, parsed.addr)
	default:
		return runClient(ctx, log, parsed.addr, m, timeout, stayConnected)
	}
}

type printHandler struct {
	log *logging.Logger
}

func (h *printHandler) OnConnected(conn *transport.Conn) {
	h.log.Infof("connected: %s", conn.RemoteAddr())
}

func (h *printHandler) OnDisconnected(conn *transport.Conn, err error) {
	h.log.Infof("disconnected: %s (%s)", conn.RemoteAddr(), err)
}

func (h *printHandler) OnMessage(conn *transport.Conn, m *pomp.Message) {
	printMessage(m)
}

func printMessage(m *pomp.Message) {
	dump, err := m.Dump()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("dump error: %s", err))
		return
	}
	fmt.Fprintln(color.Output, color.GreenString(dump))
}

func runServer(ctx context.Context, log *logging.Logger, addr *transport.Address) error {
	ln, err := transport.Listen(addr)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	log.Noticef("listening on %s", addr)
	tctx := transport.NewContext(ln, &printHandler{log: log})
	if err := tctx.Run(ctx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func runClient(ctx context.Context, log *logging.Logger, addr *transport.Address, m *pomp.Message, timeout time.Duration, stayConnected bool) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := transport.Connect(ctx, addr, &printHandler{log: log})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer conn.Close()

	if err := conn.WriteSync(m); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if timeout > 0 || stayConnected {
		<-ctx.Done()
	}
	return nil
}

func runUDP(ctx context.Context, log *logging.Logger, parsed *parsedArgs, m *pomp.Message, timeout time.Duration, stayConnected bool) error {
	dest := parsed.addr
	bind := parsed.addr
	if parsed.addrTo != nil {
		dest = parsed.addrTo
	}

	h := &udpPrintHandler{}
	d, err := transport.ListenDatagram(bind, h)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer d.Close()

	destConn, err := transport.DialDatagram(dest)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if _, err := destConn.Write(m.Bytes()); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	destConn.Close()

	if timeout <= 0 && !stayConnected {
		return nil
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.Run(runCtx)
}

type udpPrintHandler struct{}

func (h *udpPrintHandler) OnDatagramMessage(addr net.Addr, m *pomp.Message) {
	fmt.Fprintf(color.Output, "%s ", addr)
	printMessage(m)
}
