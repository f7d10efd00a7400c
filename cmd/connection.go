// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/telemetron/pkg/capture"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

// Source is a packet source selected on the command line
type Source interface {
	// Feed delivers telemetry to rx until the source ends or ctx is done
	Feed(ctx context.Context, rx *telemetry.Receiver) error
	String() string
}

// udpSource receives one packet per datagram
type udpSource struct {
	addr string
}

func (s udpSource) Feed(ctx context.Context, rx *telemetry.Receiver) error {
	return rx.ListenUDP(ctx, s.addr)
}

func (s udpSource) String() string {
	return "UDP: " + s.addr
}

// captureSource replays the UDP payloads of a pcap file
type captureSource struct {
	path string
}

func (s captureSource) Feed(ctx context.Context, rx *telemetry.Receiver) error {
	n, err := capture.ReplayFile(ctx, s.path, 0, func(d capture.Datagram) error {
		rx.HandleDatagram(d.Payload)
		return nil
	})
	log.Info("capture replay finished", "path", s.path, "datagrams", n)
	return err
}

func (s captureSource) String() string {
	return "Capture: " + s.path
}

// serialSource reads an unframed packet stream from a serial port
type serialSource struct {
	port string
	baud int
}

func (s serialSource) open() (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	return port, nil
}

func (s serialSource) Feed(ctx context.Context, rx *telemetry.Receiver) error {
	port, err := s.open()
	if err != nil {
		return err
	}
	return feedStream(ctx, rx, port, s.String())
}

func (s serialSource) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.port, s.baud)
}

// websocketSource reads packet bytes from the binary frames of a
// websocket bridge. Frame boundaries are not packet boundaries.
type websocketSource struct {
	url           string
	username      string
	password      func() (string, error)
	skipSSLVerify bool
}

func (s websocketSource) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: s.skipSSLVerify}
	}

	headers := http.Header{}
	if s.username != "" && s.password != nil {
		password, err := s.password()
		if err != nil {
			return nil, err
		}
		req := http.Request{Header: headers}
		req.SetBasicAuth(s.username, password)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, s.url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return conn, nil
}

func (s websocketSource) Feed(ctx context.Context, rx *telemetry.Receiver) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	return feedStream(ctx, rx, &frameReader{conn: conn}, s.String())
}

func (s websocketSource) String() string {
	return "WebSocket: " + s.url
}

// frameReader presents the binary frames of a websocket as one byte
// stream. Text frames are skipped; a close frame ends the stream.
type frameReader struct {
	conn *websocket.Conn
	cur  io.Reader
}

func (f *frameReader) Read(p []byte) (int, error) {
	for {
		if f.cur != nil {
			n, err := f.cur.Read(p)
			if err == io.EOF {
				f.cur = nil
				err = nil
			}
			if n > 0 || err != nil {
				return n, err
			}
			continue
		}

		messageType, r, err := f.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if messageType == websocket.BinaryMessage {
			f.cur = r
		}
	}
}

func (f *frameReader) Close() error {
	return f.conn.Close()
}

// feedStream runs the stream decoder over conn and closes it on return
// or when ctx is done, which also unblocks a pending Read.
func feedStream(ctx context.Context, rx *telemetry.Receiver, conn io.ReadCloser, name string) error {
	log.Info("connected", "source", name)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	err := rx.ReadStream(ctx, conn)
	if err == nil {
		log.Info("connection closed", "source", name)
	}
	return err
}

// errNoSource is returned when no source flag is set
var errNoSource = errors.New("no packet source: use --listen, --pcap, --port or --url")

// selectSource picks the packet source from the global flags. UDP wins
// over capture replay, which wins over websocket, then serial.
func selectSource() (Source, error) {
	switch {
	case listenAddr != "":
		return udpSource{addr: listenAddr}, nil
	case pcapPath != "":
		return captureSource{path: pcapPath}, nil
	case wsURL != "":
		return websocketSource{
			url:           wsURL,
			username:      wsUsername,
			password:      GetPassword,
			skipSSLVerify: wsNoSSLVerify,
		}, nil
	case portName != "":
		return serialSource{port: portName, baud: baudRate}, nil
	}
	return nil, errNoSource
}

// describeSource names the packet source selected by the flags
func describeSource() string {
	src, err := selectSource()
	if err != nil {
		return "none"
	}
	return src.String()
}

// runSource feeds rx from the source selected by the flags
func runSource(ctx context.Context, rx *telemetry.Receiver) error {
	src, err := selectSource()
	if err != nil {
		return err
	}
	return src.Feed(ctx, rx)
}

// GetPassword reads TELEMETRON_PASSWORD, or prompts on the terminal
func GetPassword() (string, error) {
	if pw := os.Getenv("TELEMETRON_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	pw, err := term.ReadPassword(int(syscall.Stdin))
	if err == nil {
		return string(pw), nil
	}

	// stdin is not a terminal
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
