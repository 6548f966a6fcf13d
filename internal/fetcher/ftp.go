package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
	// Retry governs reconnecting after transient dial or login failures.
	Retry resilience.RetryConfig
}

// FTPFetcher downloads files over FTP.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.User == "" {
		opts.User = "anonymous"
		if opts.Password == "" {
			opts.Password = "anonymous"
		}
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, path, nil
}

func (f *FTPFetcher) connect(ctx context.Context, host string) (*ftp.ServerConn, error) {
	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("ftp connect", host)
	}
	return resilience.Do(ctx, retry, func(ctx context.Context) (*ftp.ServerConn, error) {
		return f.dial(ctx, host)
	})
}

func (f *FTPFetcher) dial(ctx context.Context, host string) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", host))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// ftpConnReader wraps an FTP response and connection so that closing the reader
// also closes the FTP response and disconnects from the server.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// Download connects to the FTP server, retrieves the file, and returns a reader.
// The caller must close the returned ReadCloser to release the FTP connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, p, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	conn, err := f.connect(ctx, host)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(p)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// List retrieves every file in the FTP directory dirURL whose extension
// matches exts, over a single connection. Files are sorted by name.
func (f *FTPFetcher) List(ctx context.Context, dirURL string, exts []string) ([]Document, error) {
	host, dir, err := parseFTPURL(dirURL)
	if err != nil {
		return nil, err
	}

	conn, err := f.connect(ctx, host)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	names, err := conn.NameList(dir)
	if err != nil {
		return nil, eris.Wrap(err, "ftp list")
	}

	var files []string
	for _, n := range names {
		if HasExtension(n, exts) {
			files = append(files, path.Join(dir, path.Base(n)))
		}
	}
	sort.Strings(files)

	docs := make([]Document, 0, len(files))
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return docs, eris.Wrap(err, "ftp: list cancelled")
		}
		data, err := retrieve(conn, p)
		if err != nil {
			return docs, err
		}
		docs = append(docs, Document{Name: path.Base(p), Data: data})
	}

	zap.L().Info("ftp: listed directory",
		zap.String("host", host),
		zap.String("dir", dir),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

func retrieve(conn *ftp.ServerConn, p string) ([]byte, error) {
	resp, err := conn.Retr(p)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp retrieve %s", p)
	}
	data, err := io.ReadAll(resp)
	closeErr := resp.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "ftp read %s", p)
	}
	if closeErr != nil {
		return nil, eris.Wrapf(closeErr, "ftp close %s", p)
	}
	return data, nil
}
