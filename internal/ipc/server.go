package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"toolbox/internal/api"
	"toolbox/internal/daemon"
	"toolbox/internal/logging"
	"toolbox/internal/logs"
	"toolbox/internal/services"
)

// serviceName is the JSON-RPC receiver name shared by server and client.
const serviceName = "Toolbox"

// Server exposes daemon operations via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// ServerOption customizes the Server.
type ServerOption func(*service)

// WithShutdown registers the function the Stop RPC calls after the daemon
// has released its resources.
func WithShutdown(fn func()) ServerOption {
	return func(s *service) {
		s.shutdown = fn
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
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

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	for _, opt := range opts {
		opt(svc)
	}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the server, drops open connections, and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun toolbox daemon stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) ops() *api.Service {
	return s.daemon.Service()
}

func (s *service) ConvertAll(req ConvertAllRequest, resp *ConvertAllResponse) error {
	out, err := s.ops().ConvertAll(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) ConvertOne(req ConvertOneRequest, resp *ConvertOneResponse) error {
	out, err := s.ops().ConvertOne(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) DeleteAllMatching(req DeleteAllMatchingRequest, resp *DeleteAllMatchingResponse) error {
	out, err := s.ops().DeleteAllMatching(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) SaveSettings(req SaveSettingsRequest, resp *SaveSettingsResponse) error {
	out, err := s.ops().SaveSettings(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) LoadSettings(req LoadSettingsRequest, resp *LoadSettingsResponse) error {
	out, err := s.ops().LoadSettings(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) ImportKeys(req KeysFileRequest, resp *KeysFileResponse) error {
	out, err := s.ops().ImportKeys(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) ExportKeys(req KeysFileRequest, resp *KeysFileResponse) error {
	out, err := s.ops().ExportKeys(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) RunJob(req RunJobRequest, resp *RunJobResponse) error {
	out, err := s.ops().RunJob(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) RunTranscode(req RunTranscodeRequest, resp *RunTranscodeResponse) error {
	out, err := s.ops().RunTranscode(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) CheckPath(req CheckPathRequest, resp *CheckPathResponse) error {
	out, err := s.ops().CheckPathIsDirectory(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) Tasks(req TasksRequest, resp *TasksResponse) error {
	out, err := s.ops().Tasks(s.ctx, req)
	*resp = out
	return encodeError(err)
}

func (s *service) ClearTasks(req ClearTasksRequest, resp *ClearTasksResponse) error {
	s.log().Debug("task history clear requested", logging.Bool("all", req.All))
	removed, err := s.daemon.ClearTasks(s.ctx, req.All)
	if err != nil {
		return encodeError(err)
	}
	resp.Removed = removed
	s.log().Info("task history cleared",
		logging.String(logging.FieldEventType, "tasks_clear"),
		logging.Bool("all", req.All),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	out, err := s.daemon.Status(s.ctx)
	*resp = out
	return encodeError(err)
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown != nil {
		// Let the response flush before the process begins exiting.
		time.AfterFunc(100*time.Millisecond, s.shutdown)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Match:  req.Match,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return encodeError(services.Wrap(services.ErrExternalTool, "ipc", "log tail", "read daemon log", err))
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
