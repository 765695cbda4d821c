// Package mpris exposes playback controls on the session bus so
// desktop media keys drive the guide.
package mpris

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// BusName is the well-known MPRIS bus name claimed by audiowalk.
	BusName = "org.mpris.MediaPlayer2.audiowalk"
	// ObjectPath is the MPRIS object path.
	ObjectPath = "/org/mpris/MediaPlayer2"
	// PlayerInterface is the MPRIS player interface name.
	PlayerInterface = "org.mpris.MediaPlayer2.Player"
)

// PlayerControl is the subset of the playback controller driven over
// the bus.
type PlayerControl interface {
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Stop() error
}

// Server registers the MPRIS player interface on the session bus.
type Server struct {
	logger  *slog.Logger
	control PlayerControl
	conn    *dbus.Conn
}

// NewServer creates an MPRIS server driving the given control.
func NewServer(control PlayerControl, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, control: control}
}

// Start connects to the session bus and claims the player name.
// Callers treat failure as non-fatal: media keys simply stay inert.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("bus name %s already owned", BusName)
	}

	handler := &playerHandler{server: s}
	if err := conn.Export(handler, ObjectPath, PlayerInterface); err != nil {
		conn.Close()
		return err
	}

	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: PlayerInterface,
				Methods: []introspect.Method{
					{Name: "PlayPause"},
					{Name: "Play"},
					{Name: "Pause"},
					{Name: "Stop"},
					{Name: "Next"},
					{Name: "Previous"},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.logger.Info("mpris server started", "bus_name", BusName)
	return nil
}

// Stop releases the bus name and closes the connection.
func (s *Server) Stop() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(BusName); err != nil {
		s.logger.Debug("failed to release bus name", "error", err)
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// playerHandler implements the exported MPRIS player methods. Errors
// from the controller (including lock contention) are logged, never
// returned over the bus.
type playerHandler struct {
	server *Server
}

func (h *playerHandler) PlayPause() *dbus.Error {
	if err := h.server.control.Toggle(context.Background()); err != nil {
		h.server.logger.Debug("mpris play-pause ignored", "error", err)
	}
	return nil
}

func (h *playerHandler) Play() *dbus.Error {
	return h.PlayPause()
}

func (h *playerHandler) Pause() *dbus.Error {
	return h.PlayPause()
}

func (h *playerHandler) Stop() *dbus.Error {
	if err := h.server.control.Stop(); err != nil {
		h.server.logger.Debug("mpris stop ignored", "error", err)
	}
	return nil
}

func (h *playerHandler) Next() *dbus.Error {
	if err := h.server.control.Next(context.Background()); err != nil {
		h.server.logger.Debug("mpris next ignored", "error", err)
	}
	return nil
}

func (h *playerHandler) Previous() *dbus.Error {
	if err := h.server.control.Previous(context.Background()); err != nil {
		h.server.logger.Debug("mpris previous ignored", "error", err)
	}
	return nil
}
