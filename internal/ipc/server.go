package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"github.com/google/uuid"

	"khome/internal/daemon"
	"khome/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger}
	if err := rpcServer.RegisterName("Khome", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

// sessionID tags node-bound requests so their replies can be correlated.
func sessionID() string {
	return uuid.NewString()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.UptimeSeconds = int64(status.Uptime.Seconds())
	resp.Revision = status.Revision
	resp.Nodes = status.Nodes
	resp.NodesAlive = status.NodesAlive
	resp.Actors = status.Actors
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockPath
	resp.SocketPath = status.SocketPath
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC")
	return nil
}

func (s *service) Structure(req StructureRequest, resp *StructureResponse) error {
	resp.Structure = s.daemon.Manager().Structure(req.Revision)
	return nil
}

func (s *service) Data(req DataRequest, resp *DataResponse) error {
	resp.Data = s.daemon.Manager().Data(req.Keys)
	return nil
}

func (s *service) Timetable(_ TimetableRequest, resp *TimetableResponse) error {
	resp.Timetable = s.daemon.Manager().Timetable()
	return nil
}

func (s *service) Ping(req PingRequest, resp *PingResponse) error {
	answer, err := s.daemon.Manager().Ping(req.Node, sessionID())
	if err != nil {
		return err
	}
	if answer == nil {
		resp.TimedOut = true
		return nil
	}
	resp.Answer = answer
	return nil
}

func (s *service) Signal(req SignalRequest, resp *SignalResponse) error {
	answer, err := s.daemon.Manager().Signal(req.Node, req.Module, req.Value, sessionID())
	if err != nil {
		return err
	}
	if answer == nil {
		resp.TimedOut = true
		return nil
	}
	resp.Answer = answer
	return nil
}

func (s *service) ModuleAdd(req ModuleAddRequest, resp *ModuleAddResponse) error {
	count, err := s.daemon.Manager().AddModules(req.Node, req.GPIO, sessionID())
	if err != nil {
		return err
	}
	resp.Count = count
	return nil
}

func (s *service) ModuleRemove(req ModuleRemoveRequest, resp *ModuleRemoveResponse) error {
	count, err := s.daemon.Manager().DelModules(req.Node, req.Modules, sessionID())
	if err != nil {
		return err
	}
	resp.Count = count
	return nil
}

func (s *service) ModuleRename(req ModuleRenameRequest, resp *ModuleRenameResponse) error {
	count, err := s.daemon.Manager().RenameModule(req.Node, req.Module, req.Name)
	if err != nil {
		return err
	}
	resp.Count = count
	return nil
}
