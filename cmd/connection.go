// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/xbuscope/internal/config"
	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// EnvPassword supplies the WebSocket password without a prompt
const EnvPassword = "XBUSCOPE_PASSWORD"

// Connection provides a common interface for reading/writing bytes from serial or WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection carries the Xbus byte stream in binary WebSocket
// messages. Frames may be split across messages.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, ErrConnectionClosed
			}
			return 0, fmt.Errorf("websocket read: %w", err)
		}

		if messageType != websocket.BinaryMessage {
			log.Debug().Int("type", messageType).Msg("skipping non-binary websocket message")
			continue
		}

		w.buf = data
		w.bufOffset = copy(p, w.buf)
		return w.bufOffset, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("websocket write: %w", err)
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port at 8N1
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth.
// The URL scheme has already been checked by config.Validate.
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if strings.HasPrefix(wsURL, "wss://") {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a line instead
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a WebSocket connection when a URL is configured,
// otherwise the serial port
func OpenConnection(c config.Config) (Connection, string, error) {
	if c.URL != "" {
		password := ""
		if c.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(c.URL, c.Username, password, c.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("url", c.URL).Msg("websocket connected")
		return conn, fmt.Sprintf("WebSocket: %s", c.URL), nil
	}

	if c.Port != "" {
		conn, err := OpenSerialConnection(c.Port, c.Baud)
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("port", c.Port).Int("baud", c.Baud).Msg("serial port opened")
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}

// streamEvent is one decoder result
type streamEvent struct {
	msg *xbus.Message
	err error
	at  time.Time
}

// readStream decodes conn until it fails or done is closed, passing every
// decoded message or decode error to events. The returned channel yields the
// read error that ended the stream; ErrConnectionClosed and io.EOF end it
// cleanly with nil.
func readStream(conn io.Reader, events chan<- streamEvent, done <-chan struct{}) <-chan error {
	result := make(chan error, 1)

	go func() {
		decoder := xbus.NewDecoder()
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				msg, decodeErr := decoder.DecodeByte(buf[i])
				if msg == nil && decodeErr == nil {
					continue
				}
				select {
				case events <- streamEvent{msg: msg, err: decodeErr, at: time.Now()}:
				case <-done:
					result <- nil
					return
				}
			}
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
					err = nil
				}
				result <- err
				return
			}
		}
	}()

	return result
}

// sendMessage writes one complete frame to conn
func sendMessage(conn io.Writer, m *xbus.Message) error {
	if _, err := m.WriteTo(conn); err != nil {
		return fmt.Errorf("failed to send %s: %w", xbus.MessageIDName(m.MessageID()), err)
	}
	log.Debug().
		Str("mid", xbus.MessageIDName(m.MessageID())).
		Str("frame", m.HexString(32)).
		Msg("sent")
	return nil
}
