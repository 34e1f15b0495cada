package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const serviceName = "Facecam"

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartRecording begins a recording.
func (c *Client) StartRecording() (*StartRecordingResponse, error) {
	var resp StartRecordingResponse
	if err := c.call("StartRecording", StartRecordingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopRecording finalizes the recording and waits up to wait for the save.
func (c *Client) StopRecording(wait time.Duration) (*StopRecordingResponse, error) {
	var resp StopRecordingResponse
	req := StopRecordingRequest{WaitMillis: int(wait / time.Millisecond)}
	if err := c.call("StopRecording", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVideos returns the stored videos.
func (c *Client) ListVideos() (*ListVideosResponse, error) {
	var resp ListVideosResponse
	if err := c.call("ListVideos", ListVideosRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteVideo removes a video by id.
func (c *Client) DeleteVideo(id string) (*DeleteVideoResponse, error) {
	var resp DeleteVideoResponse
	if err := c.call("DeleteVideo", DeleteVideoRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearVideos removes every stored video.
func (c *Client) ClearVideos() (*ClearVideosResponse, error) {
	var resp ClearVideosResponse
	if err := c.call("ClearVideos", ClearVideosRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportVideo asks the daemon to write a video to path.
func (c *Client) ExportVideo(id, path string) (*ExportVideoResponse, error) {
	var resp ExportVideoResponse
	if err := c.call("ExportVideo", ExportVideoRequest{ID: id, Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preview asks the daemon to write a preview JPEG to path.
func (c *Client) Preview(path string) (*PreviewResponse, error) {
	var resp PreviewResponse
	if err := c.call("Preview", PreviewRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
