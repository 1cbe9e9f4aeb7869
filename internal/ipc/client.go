package ipc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

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

// call issues method and waits for the reply or ctx. A canceled call leaves
// the daemon-side operation running; the connection is closed so the reply is
// discarded.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pending := c.client.Go(serviceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		_ = c.Close()
		return ctx.Err()
	case done := <-pending.Done:
		return decodeError(done.Error)
	}
}

// ConvertAll converts every matching file in a directory.
func (c *Client) ConvertAll(ctx context.Context, req ConvertAllRequest) (*ConvertAllResponse, error) {
	var resp ConvertAllResponse
	if err := c.call(ctx, "ConvertAll", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConvertOne converts a single file.
func (c *Client) ConvertOne(ctx context.Context, req ConvertOneRequest) (*ConvertOneResponse, error) {
	var resp ConvertOneResponse
	if err := c.call(ctx, "ConvertOne", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAllMatching removes files with the given extension.
func (c *Client) DeleteAllMatching(ctx context.Context, req DeleteAllMatchingRequest) (*DeleteAllMatchingResponse, error) {
	var resp DeleteAllMatchingResponse
	if err := c.call(ctx, "DeleteAllMatching", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveSettings persists settings.
func (c *Client) SaveSettings(ctx context.Context, req SaveSettingsRequest) (*SaveSettingsResponse, error) {
	var resp SaveSettingsResponse
	if err := c.call(ctx, "SaveSettings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoadSettings reads stored settings.
func (c *Client) LoadSettings(ctx context.Context) (*LoadSettingsResponse, error) {
	var resp LoadSettingsResponse
	if err := c.call(ctx, "LoadSettings", LoadSettingsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImportKeys merges API keys from a file into settings.
func (c *Client) ImportKeys(ctx context.Context, req KeysFileRequest) (*KeysFileResponse, error) {
	var resp KeysFileResponse
	if err := c.call(ctx, "ImportKeys", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportKeys writes configured API keys to a file.
func (c *Client) ExportKeys(ctx context.Context, req KeysFileRequest) (*KeysFileResponse, error) {
	var resp KeysFileResponse
	if err := c.call(ctx, "ExportKeys", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunJob submits a remote job and waits for its result.
func (c *Client) RunJob(ctx context.Context, req RunJobRequest) (*RunJobResponse, error) {
	var resp RunJobResponse
	if err := c.call(ctx, "RunJob", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunTranscode runs one encoder operation.
func (c *Client) RunTranscode(ctx context.Context, req RunTranscodeRequest) (*RunTranscodeResponse, error) {
	var resp RunTranscodeResponse
	if err := c.call(ctx, "RunTranscode", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckPath reports whether a path exists and is a directory.
func (c *Client) CheckPath(ctx context.Context, req CheckPathRequest) (*CheckPathResponse, error) {
	var resp CheckPathResponse
	if err := c.call(ctx, "CheckPath", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tasks lists task history.
func (c *Client) Tasks(ctx context.Context, req TasksRequest) (*TasksResponse, error) {
	var resp TasksResponse
	if err := c.call(ctx, "Tasks", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearTasks removes task history entries.
func (c *Client) ClearTasks(ctx context.Context, all bool) (*ClearTasksResponse, error) {
	var resp ClearTasksResponse
	if err := c.call(ctx, "ClearTasks", ClearTasksRequest{All: all}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop(ctx context.Context) (*StopResponse, error) {
	var resp StopResponse
	if err := c.call(ctx, "Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(ctx context.Context, req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call(ctx, "LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
