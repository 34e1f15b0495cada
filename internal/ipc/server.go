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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"facecam/internal/daemon"
	"facecam/internal/logging"
	"facecam/internal/logs"
	"facecam/internal/services"
)

const defaultSaveWait = 10 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
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
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
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
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
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

// Close stops the server and removes the socket file. Open client
// connections finish their current call.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// request tags a call's context with a fresh correlation id, and the video id
// when the call targets one.
func (s *service) request(videoID string) context.Context {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	return services.WithVideoID(ctx, videoID)
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status()
	snap := st.Session
	*resp = StatusResponse{
		Running:        st.Running,
		PID:            st.PID,
		StartedAt:      st.StartedAt,
		Status:         string(snap.Status),
		Message:        snap.Message,
		Notice:         snap.Notice,
		Recording:      snap.Recording,
		RecordingState: snap.RecordingState,
		DetectionMode:  snap.Mode,
		Overlay:        snap.Overlay,
		Detections:     snap.Detections,
		Stats:          snap.Stats,
		VideoCount:     len(snap.Videos),
		TotalBytes:     snap.TotalBytes,
		LastError:      st.LastError,
		Source:         st.Source,
		Device:         st.Device,
		Hotplug:        st.Hotplug,
		DatabasePath:   st.DatabasePath,
		LockPath:       st.LockFilePath,
		SocketPath:     st.SocketPath,
		LogPath:        st.LogPath,
	}
	return nil
}

func (s *service) StartRecording(_ StartRecordingRequest, resp *StartRecordingResponse) error {
	ctx := s.request("")
	if err := s.daemon.StartRecording(ctx); err != nil {
		return err
	}
	resp.Started = true
	logging.WithContext(ctx, s.logger).Info("recording started via IPC", logging.String(logging.FieldEventType, "ipc_recording_start"))
	return nil
}

func (s *service) StopRecording(req StopRecordingRequest, resp *StopRecordingResponse) error {
	fin, err := s.daemon.StopRecording(s.request(""))
	if err != nil {
		return err
	}
	if fin == nil {
		return nil
	}
	resp.Stopped = true
	resp.Reason = fin.Reason
	resp.Frames = fin.Artifact.Frames
	resp.SizeBytes = fin.Artifact.Size()

	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 {
		wait = defaultSaveWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case res, ok := <-fin.Persisted:
		switch {
		case !ok:
			resp.SaveError = "save result unavailable"
		case res.Err != nil:
			resp.SaveError = res.Err.Error()
		default:
			video := res.Video
			resp.Video = &video
			resp.Saved = true
		}
	case <-timer.C:
		resp.SaveError = fmt.Sprintf("save still pending after %s", wait)
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	return nil
}

func (s *service) ListVideos(_ ListVideosRequest, resp *ListVideosResponse) error {
	resp.Videos = s.daemon.Videos()
	for _, v := range resp.Videos {
		resp.TotalBytes += v.SizeBytes
	}
	return nil
}

func (s *service) DeleteVideo(req DeleteVideoRequest, resp *DeleteVideoResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("video id required")
	}
	removed, err := s.daemon.DeleteVideo(s.request(id), id)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) ClearVideos(_ ClearVideosRequest, resp *ClearVideosResponse) error {
	ctx := s.request("")
	removed, err := s.daemon.ClearVideos(ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	logging.WithContext(ctx, s.logger).Info("videos cleared via IPC",
		logging.String(logging.FieldEventType, "ipc_videos_cleared"),
		logging.Int("removed_count", removed),
	)
	return nil
}

func (s *service) ExportVideo(req ExportVideoRequest, resp *ExportVideoResponse) error {
	id := strings.TrimSpace(req.ID)
	video, path, err := s.daemon.ExportVideo(s.request(id), id, req.Path)
	if err != nil {
		return err
	}
	resp.Video = video
	resp.Path = path
	return nil
}

func (s *service) Preview(req PreviewRequest, resp *PreviewResponse) error {
	snap, err := s.daemon.WritePreview(s.request(""), req.Path)
	if err != nil {
		return err
	}
	*resp = PreviewResponse{Path: snap.Path, Width: snap.Width, Height: snap.Height, SizeBytes: snap.SizeBytes}
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
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
